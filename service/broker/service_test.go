package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/agentmesh/metrics"
	"github.com/viant/agentmesh/model/message"
	"github.com/viant/agentmesh/service/event"
	"github.com/viant/agentmesh/service/messaging"
)

func profile(id string, capabilities ...string) *message.Profile {
	ret := &message.Profile{ID: id, Type: "test"}
	for _, name := range capabilities {
		ret.Capabilities = append(ret.Capabilities, message.Capability{Name: name})
	}
	return ret
}

func echo(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	return message.ReplyTo(env, true, env.Request.Parameters, ""), nil
}

func silent(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	return nil, nil
}

func TestService_Registry(t *testing.T) {
	srv := New()
	assert.False(t, srv.Register(nil, silent))
	assert.False(t, srv.Register(&message.Profile{}, silent))

	assert.True(t, srv.Register(profile("a"), silent))
	assert.True(t, srv.Register(profile("b"), silent))
	assert.True(t, srv.Register(&message.Profile{ID: "a", Type: "replaced"}, silent))

	profiles := srv.Profiles()
	require.Len(t, profiles, 2)
	assert.Equal(t, "a", profiles[0].ID)
	assert.Equal(t, "replaced", profiles[0].Type)
	assert.Equal(t, message.StatusActive, profiles[0].Status)

	returned := srv.Profile("b")
	returned.Type = "mutated"
	assert.Equal(t, "test", srv.Profile("b").Type)
	assert.Nil(t, srv.Profile("missing"))

	assert.True(t, srv.SetStatus("b", message.StatusBusy))
	assert.False(t, srv.SetStatus("missing", message.StatusBusy))
	assert.Equal(t, message.StatusBusy, srv.Profile("b").Status)

	assert.True(t, srv.Unregister("a"))
	assert.False(t, srv.Unregister("a"))
	assert.Len(t, srv.Profiles(), 1)
}

func TestService_FindByCapability(t *testing.T) {
	srv := New()
	srv.Register(profile("first", "search", "summarize"), silent)
	srv.Register(profile("second", "search"), silent)

	assert.Equal(t, "first", srv.FindByCapability("search").ID)
	assert.Equal(t, "first", srv.FindByCapability("summarize").ID)
	assert.Nil(t, srv.FindByCapability("translate"))
	assert.Len(t, srv.FindAllByCapability("search"), 2)
}

func TestService_SendNoWait(t *testing.T) {
	ctx := context.Background()
	srv := New()
	var received *message.Envelope
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		received = env
		return nil, nil
	})

	env := message.NewRequest("a", "b", "ping", nil, nil)
	assert.Nil(t, srv.Send(ctx, env))
	assert.Same(t, env, received)
	assert.Contains(t, srv.Messages("a", 0), env)
	assert.Contains(t, srv.Messages("b", 0), env)
	assert.Equal(t, []*message.Envelope{env}, srv.Conversation(env.ConversationID))
}

func TestService_SendRoutingErrors(t *testing.T) {
	ctx := context.Background()
	srv := New()
	called := false
	srv.Register(profile("a"), silent)
	srv.Register(profile("off"), func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		called = true
		return env, nil
	})
	srv.SetStatus("off", message.StatusOffline)

	testCases := []struct {
		description string
		env         *message.Envelope
	}{
		{description: "nil envelope"},
		{description: "unknown recipient", env: message.NewRequest("a", "ghost", "ping", nil, nil)},
		{description: "offline recipient", env: message.NewRequest("a", "off", "ping", nil, nil)},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, srv.Send(ctx, tc.env, WithWait(true), WithTimeout(time.Second)))
			})
		})
	}
	assert.False(t, called)
	assert.Empty(t, srv.Messages("a", 0))
}

func TestService_SendWaitSyncReply(t *testing.T) {
	srv := New()
	srv.Register(profile("a"), silent)
	var sent *message.Envelope
	srv.Register(profile("b"), func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		sent = message.ReplyTo(env, true, "pong", "")
		return sent, nil
	})

	started := time.Now()
	reply := srv.Send(context.Background(), message.NewRequest("a", "b", "ping", nil, nil), WithWait(true), WithTimeout(5*time.Second))
	require.NotNil(t, reply)
	assert.Same(t, sent, reply)
	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, 0, srv.Pending())
}

func TestService_SendWaitTimeout(t *testing.T) {
	srv := New()
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), silent)

	timeout := 100 * time.Millisecond
	started := time.Now()
	env := message.NewRequest("a", "b", "ping", nil, nil)
	reply := srv.Send(context.Background(), env, WithWait(true), WithTimeout(timeout))
	elapsed := time.Since(started)
	assert.Nil(t, reply)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
	assert.Equal(t, 0, srv.Pending())

	late := message.ReplyTo(env, true, "late", "")
	assert.False(t, srv.Resolve(late))
}

func TestService_SendWaitHandlerFailure(t *testing.T) {
	testCases := []struct {
		description string
		handler     Handler
	}{
		{
			description: "error",
			handler: func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
				return nil, errors.New("boom")
			},
		},
		{
			description: "panic",
			handler: func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
				panic("boom")
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			srv := New()
			srv.Register(profile("a"), silent)
			srv.Register(profile("b"), tc.handler)
			started := time.Now()
			assert.Nil(t, srv.Send(context.Background(), message.NewRequest("a", "b", "ping", nil, nil), WithWait(true), WithTimeout(5*time.Second)))
			assert.Less(t, time.Since(started), time.Second)
			assert.Equal(t, 0, srv.Pending())
			assert.Nil(t, srv.Send(context.Background(), message.NewRequest("a", "b", "ping", nil, nil)))
		})
	}
}

func TestService_AsyncResolution(t *testing.T) {
	srv := New()
	srv.Register(profile("a"), silent)
	srv.Register(profile("c"), silent)
	inbox := make(chan *message.Envelope, 1)
	srv.Register(profile("b"), func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		if env.Kind == message.KindRequest {
			inbox <- env
		}
		return nil, nil
	})

	t.Run("resolve", func(t *testing.T) {
		go func() {
			request := <-inbox
			assert.False(t, srv.Resolve(message.NewResponse("c", "a", true, "spoof", "", request.ID, "")))
			assert.True(t, srv.Resolve(message.ReplyTo(request, true, "async", "")))
			assert.False(t, srv.Resolve(message.ReplyTo(request, true, "again", "")))
		}()
		reply := srv.Send(context.Background(), message.NewRequest("a", "b", "ping", nil, nil), WithWait(true), WithTimeout(5*time.Second))
		require.NotNil(t, reply)
		assert.Equal(t, "async", reply.Response.Data)
	})

	t.Run("response send", func(t *testing.T) {
		go func() {
			request := <-inbox
			srv.Send(context.Background(), message.ReplyTo(request, true, "routed", ""))
		}()
		reply := srv.Send(context.Background(), message.NewRequest("a", "b", "ping", nil, nil), WithWait(true), WithTimeout(5*time.Second))
		require.NotNil(t, reply)
		assert.Equal(t, "routed", reply.Response.Data)
	})
}

func TestService_SendWaitContextCancel(t *testing.T) {
	srv := New()
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), silent)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	started := time.Now()
	assert.Nil(t, srv.Send(ctx, message.NewRequest("a", "b", "ping", nil, nil), WithWait(true), WithTimeout(5*time.Second)))
	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, 0, srv.Pending())
}

func TestService_ConcurrentWaits(t *testing.T) {
	srv := New()
	srv.Register(profile("b"), func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		time.Sleep(10 * time.Millisecond)
		return message.ReplyTo(env, true, env.Request.Parameters["n"], ""), nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sender := fmt.Sprintf("a%d", i)
		srv.Register(profile(sender), silent)
		wg.Add(1)
		go func(n int, sender string) {
			defer wg.Done()
			reply := srv.Send(context.Background(), message.NewRequest(sender, "b", "n", map[string]interface{}{"n": n}, nil), WithWait(true), WithTimeout(5*time.Second))
			if assert.NotNil(t, reply) {
				assert.Equal(t, n, reply.Response.Data)
			}
		}(i, sender)
	}
	wg.Wait()
}

func TestService_Broadcast(t *testing.T) {
	srv := New()
	var mu sync.Mutex
	delivered := map[string]*message.Envelope{}
	record := func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		mu.Lock()
		delivered[env.Recipient] = env
		mu.Unlock()
		return nil, nil
	}
	for _, id := range []string{"sender", "b", "c", "d", "off", "busy"} {
		srv.Register(profile(id), record)
	}
	srv.SetStatus("off", message.StatusOffline)
	srv.SetStatus("busy", message.StatusBusy)

	env := message.NewNotification("sender", "", "started", nil, message.SeverityInfo)
	count := srv.Broadcast(context.Background(), env, "d")
	assert.Equal(t, 3, count)
	assert.ElementsMatch(t, []string{"b", "c", "busy"}, keys(delivered))
	assert.NotEqual(t, env.ID, delivered["b"].ID)
	assert.NotEqual(t, delivered["b"].ID, delivered["c"].ID)
	assert.Equal(t, 0, srv.Broadcast(context.Background(), nil))
}

func keys(m map[string]*message.Envelope) []string {
	var ret []string
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	srv := New()
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), echo)

	first := message.NewRequest("a", "b", "t", nil, nil, message.WithConversation("c1"))
	second := message.NewRequest("a", "b", "t", nil, nil, message.WithConversation("c2"))
	srv.Send(ctx, first)
	srv.Send(ctx, second)

	assert.Len(t, srv.Conversation("c1"), 2)
	last := srv.Messages("a", 1)
	require.Len(t, last, 1)
	assert.Equal(t, "c2", last[0].ConversationID)

	stats := srv.Statistics()
	assert.Equal(t, 4, stats.TotalMessages)
	assert.Equal(t, 2, stats.Conversations)
	assert.Equal(t, 2, stats.TotalAgents)
	assert.Equal(t, 2, stats.ActiveAgents)
	assert.Equal(t, 4, stats.Agents["b"].MessageCount)

	srv.ClearHistory("c1")
	assert.Empty(t, srv.Conversation("c1"))
	assert.Len(t, srv.Messages("a", 0), 2)

	srv.ClearHistory("")
	assert.Empty(t, srv.Messages("a", 0))
	assert.Equal(t, 0, srv.Statistics().TotalMessages)
}

func TestService_Reset(t *testing.T) {
	srv := New()
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), silent)

	done := make(chan *message.Envelope, 1)
	go func() {
		done <- srv.Send(context.Background(), message.NewRequest("a", "b", "ping", nil, nil), WithWait(true), WithTimeout(5*time.Second))
	}()
	require.Eventually(t, func() bool { return srv.Pending() == 1 }, time.Second, 5*time.Millisecond)
	srv.Reset()

	select {
	case reply := <-done:
		assert.Nil(t, reply)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by reset")
	}
	assert.Empty(t, srv.Profiles())
	assert.Equal(t, 0, srv.Statistics().TotalMessages)
}

func TestService_MetricsAndEvents(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	events, err := event.New(messaging.VendorMemory)
	require.NoError(t, err)
	defer events.Close()

	srv := New(WithMetrics(m), WithEvents(events), WithDefaultTimeout(50*time.Millisecond))
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), echo)
	srv.Register(profile("c"), silent)

	srv.Send(context.Background(), message.NewRequest("a", "b", "t", nil, nil), WithWait(true))
	srv.Send(context.Background(), message.NewRequest("a", "c", "t", nil, nil), WithWait(true))
	srv.Send(context.Background(), message.NewRequest("a", "ghost", "t", nil, nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRouted.WithLabelValues("request", metrics.OutcomeDelivered)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRouted.WithLabelValues("request", metrics.OutcomeTimeout)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRouted.WithLabelValues("request", metrics.OutcomeNoRecipient)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RegisteredAgents))

	assert.Equal(t, 1, srv.Broadcast(context.Background(), message.NewNotification("a", "", "started", nil, message.SeverityInfo), "b"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRouted.WithLabelValues("notification", metrics.OutcomeBroadcast)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRouted.WithLabelValues("notification", metrics.OutcomeDelivered)))

	publisher, err := event.PublisherOf[message.Envelope](events)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := publisher.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "broker", evt.Context.Source)
	assert.Equal(t, "b", evt.Data.Recipient)
}

func TestService_LosingReplyNotRecorded(t *testing.T) {
	srv := New(WithDefaultTimeout(time.Second))
	srv.Register(profile("client"), silent)
	srv.Register(profile("worker"), func(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
		srv.Resolve(message.ReplyTo(env, true, "early", ""))
		return message.ReplyTo(env, true, "direct", ""), nil
	})

	reply := srv.Send(context.Background(), message.NewRequest("client", "worker", "t", nil, nil), WithWait(true))
	require.NotNil(t, reply)
	assert.Equal(t, "early", reply.Response.Data)
	assert.Len(t, srv.Messages("client", 0), 2)
	assert.Len(t, srv.Messages("worker", 0), 2)
	assert.Equal(t, 2, srv.Statistics().TotalMessages)
}

func TestService_HandoffWaits(t *testing.T) {
	srv := New()
	srv.Register(profile("a"), silent)
	srv.Register(profile("b"), silent)
	started := time.Now()
	env := message.NewHandoff("a", "b", "billing", nil, "out of scope", "refund please", "")
	assert.Nil(t, srv.Send(context.Background(), env, WithWait(true), WithTimeout(50*time.Millisecond)))
	assert.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)

	notice := message.NewNotification("a", "b", "e", nil, message.SeverityInfo)
	started = time.Now()
	assert.Nil(t, srv.Send(context.Background(), notice, WithWait(true), WithTimeout(time.Second)))
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}
