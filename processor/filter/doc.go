// Package filter provides the "filter" node kind: a three-parameter handler
// that forwards a message only when every configured rule matches.
//
// Rules address message properties with dot notation, so "payload.temp"
// reads the temp key of the payload property. Supported operators are eq, ne,
// gt, gte, lt, lte and contains. Numeric operators compare as float64.
//
// Configuration:
//
//	{
//	  "rules": [
//	    {"field": "payload.temp", "operator": "gt", "value": 30},
//	    {"field": "topic", "operator": "contains", "value": "sensors/"}
//	  ],
//	  "reject_error": false
//	}
//
// With reject_error set, a message that fails the rules finalizes its
// invocation with ErrRejected instead of completing silently.
package filter
