package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/correlation"
	semerrors "github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

func (s *SchedulerSuite) startLoop() {
	s.Require().NoError(s.sched.Start(context.Background()))
	s.T().Cleanup(func() { _ = s.sched.Stop(time.Second) })
}

func (s *SchedulerSuite) TestConcurrentLegacyInvocationsKeepAttribution() {
	node := s.sched.Node("leg")
	entered := make(chan string, 2)
	release := make(chan struct{})
	_, err := s.sched.Register("leg", func(msg *message.Message) {
		entered <- msg.GetString("name")
		if msg.GetString("name") == "a" {
			<-release
		}
		node.Send(msg.Clone())
	})
	s.Require().NoError(err)
	s.startLoop()

	a := message.NewWithPayload("a")
	a.Set("name", "a")
	b := message.NewWithPayload("b")
	b.Set("name", "b")

	s.Require().NoError(s.sched.Submit("leg", a))
	s.Equal("a", <-entered)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.NoError(s.sched.Submit("leg", b))
	}()
	wg.Wait()

	s.Never(func() bool { return len(entered) > 0 }, 30*time.Millisecond, 5*time.Millisecond,
		"second invocation waits for the first")
	close(release)
	s.Equal("b", <-entered)
	s.Require().True(s.recorder.WaitFor(2, time.Second))

	traceA := s.sched.Tracker().Trace(a.ID())
	traceB := s.sched.Tracker().Trace(b.ID())
	s.Require().Len(traceA, 1)
	s.Require().Len(traceB, 1)
	s.Equal(correlation.Shared, traceA[0].Correlation)
	s.Equal(correlation.Shared, traceB[0].Correlation)
	s.NotEqual(traceA[0].ContextID, traceB[0].ContextID)

	s.Eventually(func() bool { return len(s.log.For("leg")) == 2 }, time.Second, 5*time.Millisecond)
}

func (s *SchedulerSuite) TestAsyncCompletionDispatchedOnLoop() {
	seen := s.observer("seen")
	s.Require().NoError(s.dispatcher.SubscribeComplete("seen", "async"))

	_, err := s.sched.Register("async", func(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
		go done(nil)
	})
	s.Require().NoError(err)
	s.startLoop()

	s.Require().NoError(s.sched.Submit("async", message.NewWithPayload("in")))
	s.Eventually(func() bool { return len(seen.received()) == 1 }, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool { return s.sched.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func (s *SchedulerSuite) TestSubmitErrors() {
	_, err := s.sched.Register("n", func(*message.Message) {})
	s.Require().NoError(err)

	err = s.sched.Submit("n", message.New())
	s.ErrorIs(err, semerrors.ErrNotRunning)
	s.True(semerrors.IsTransient(err))

	s.startLoop()
	s.ErrorIs(s.sched.Submit("missing", message.New()), semerrors.ErrNodeNotFound)
	s.True(semerrors.IsInvalid(s.sched.Submit("n", nil)))
	s.ErrorIs(s.sched.Start(context.Background()), semerrors.ErrAlreadyRunning)
}

func (s *SchedulerSuite) TestSubmitQueueLimit() {
	sched, err := New(s.recorder, WithQueueLimit(1))
	s.Require().NoError(err)

	entered := make(chan struct{})
	release := make(chan struct{})
	_, err = sched.Register("busy", func(*message.Message) {
		entered <- struct{}{}
		<-release
	})
	s.Require().NoError(err)
	s.Require().NoError(sched.Start(context.Background()))

	s.Require().NoError(sched.Submit("busy", message.New()))
	<-entered
	s.Require().NoError(sched.Submit("busy", message.New()))

	err = sched.Submit("busy", message.New())
	s.ErrorIs(err, semerrors.ErrQueueFull)
	s.Equal(1, sched.Pending())

	close(release)
	<-entered
	s.NoError(sched.Stop(time.Second))
}

func (s *SchedulerSuite) TestStopDrainsQueuedWork() {
	var mu sync.Mutex
	count := 0
	_, err := s.sched.Register("count", func(*message.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	s.Require().NoError(err)
	s.Require().NoError(s.sched.Start(context.Background()))

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.sched.Submit("count", message.New()))
	}
	s.Require().NoError(s.sched.Stop(time.Second))

	mu.Lock()
	s.Equal(5, count)
	mu.Unlock()
	s.ErrorIs(s.sched.Submit("count", message.New()), semerrors.ErrNotRunning)
	s.NoError(s.sched.Stop(time.Second), "stopping twice is a no-op")
}
