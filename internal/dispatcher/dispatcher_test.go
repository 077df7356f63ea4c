package dispatcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":TEST:", func(e Event) (any, error) {
		called = true
		if e.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":TEST:", Args: json.RawMessage(`{"a":1}`)})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), ":UNKNOWN:") {
		t.Errorf("error should name the command: %v", err)
	}
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var seen []int
	d.Register(":APPEND:", func(e Event) (any, error) {
		var args struct{ N int }
		if err := e.Bind(&args); err != nil {
			return nil, err
		}
		seen = append(seen, args.N)
		return nil, nil
	})

	for i := 0; i < 5; i++ {
		if _, err := d.Dispatch(Event{Command: ":APPEND:", Args: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))}); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	for i, n := range seen {
		if n != i {
			t.Fatalf("commands applied out of order: %v", seen)
		}
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 commands, got %d", len(seen))
	}
}

func TestEvent_Bind(t *testing.T) {
	var args struct {
		ID string `json:"id"`
	}
	args.ID = "kept"

	if err := (Event{Command: ":X:"}).Bind(&args); err != nil {
		t.Errorf("empty args should bind cleanly: %v", err)
	}
	if args.ID != "kept" {
		t.Errorf("empty args must not reset fields, got %q", args.ID)
	}

	if err := (Event{Command: ":X:", Args: json.RawMessage(`{"id":"f1"}`)}).Bind(&args); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if args.ID != "f1" {
		t.Errorf("expected f1, got %q", args.ID)
	}

	err := (Event{Command: ":X:", Args: json.RawMessage(`[1,2]`)}).Bind(&args)
	if err == nil || !strings.Contains(err.Error(), ":X:") {
		t.Errorf("expected error naming the command, got %v", err)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: ":LOGGED:", Args: json.RawMessage(`{}`)})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	_, err := d.Dispatch(Event{Command: ":ERROR:"})
	if err == nil {
		t.Error("expected handler error to be returned")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_NilLoggerSkipsLogging(t *testing.T) {
	d, err := New(nil)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	d.Register(":QUIET:", func(e Event) (any, error) { return 1, nil }, Logged())
	if _, err := d.Dispatch(Event{Command: ":QUIET:"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":B:", func(e Event) (any, error) { return nil, nil })
	d.Register(":A:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":A:") {
		t.Error("expected handler to exist")
	}
	if d.HasHandler(":NOT_EXISTS:") {
		t.Error("expected handler to not exist")
	}

	cmds := d.Commands()
	if len(cmds) != 2 || cmds[0] != ":A:" || cmds[1] != ":B:" {
		t.Errorf("unexpected commands %v", cmds)
	}
}

func TestDispatcher_ReRegisterReplaces(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":CMD:", func(e Event) (any, error) { return "first", nil })
	d.Register(":CMD:", func(e Event) (any, error) { return "second", nil })

	result, _ := d.Dispatch(Event{Command: ":CMD:"})
	if result != "second" {
		t.Errorf("expected second handler, got %v", result)
	}
}

func TestDispatcher_OptionsWrapInOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var calls []string
	tag := func(name string) Option {
		return func(_ *Dispatcher, command string, h HandlerFunc) HandlerFunc {
			return func(e Event) (any, error) {
				calls = append(calls, name+" "+command)
				return h(e)
			}
		}
	}
	d.Register(":WRAPPED:", func(e Event) (any, error) {
		calls = append(calls, "handler")
		return nil, nil
	}, tag("inner"), tag("outer"))

	if _, err := d.Dispatch(Event{Command: ":WRAPPED:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"outer :WRAPPED:", "inner :WRAPPED:", "handler"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, calls)
	}
}
