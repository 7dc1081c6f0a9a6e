package event

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

const samplePayload = `{"object":"page","entry":[{"id":"123","time":1520383571,"changes":[{"field":"feed","value":{"item":"comment","verb":"add"}}]}]}`

func TestUpdateReceived_Decode(t *testing.T) {
	ev := NewUpdateReceived(samplePayload)
	if ev.Content() != samplePayload {
		t.Fatalf("content must be unchanged")
	}

	var n Notification
	if err := ev.Decode(&n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Object != "page" || len(n.Entry) != 1 || n.Entry[0].Changes[0].Field != "feed" {
		t.Errorf("unexpected notification: %+v", n)
	}

	m, err := ev.ContentAsMap()
	if err != nil {
		t.Fatalf("content as map: %v", err)
	}
	if m["object"] != "page" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestUpdateReceived_DecodeInvalid(t *testing.T) {
	if _, err := NewUpdateReceived("not json").ContentAsMap(); err == nil {
		t.Error("expected an error for a non-JSON body")
	}
}

func TestLocal_DispatchInOrderAndStopsOnError(t *testing.T) {
	d := NewLocal()
	var order []string
	boom := errors.New("boom")

	d.Register(UpdateReceivedName, func(context.Context, *UpdateReceived) error {
		order = append(order, "first")
		return nil
	})
	d.Register(UpdateReceivedName, func(context.Context, *UpdateReceived) error {
		order = append(order, "second")
		return boom
	})
	d.Register(UpdateReceivedName, func(context.Context, *UpdateReceived) error {
		order = append(order, "third")
		return nil
	})
	d.Register("other", func(context.Context, *UpdateReceived) error {
		order = append(order, "other")
		return nil
	})

	err := d.Dispatch(context.Background(), UpdateReceivedName, NewUpdateReceived("{}"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected listener error, got %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected call order: %v", order)
	}
}

func TestLogListener_IgnoresNonJSON(t *testing.T) {
	if err := LogListener(context.Background(), NewUpdateReceived("plain")); err != nil {
		t.Errorf("log listener should not fail, got %v", err)
	}
	if err := LogListener(context.Background(), NewUpdateReceived(samplePayload)); err != nil {
		t.Errorf("log listener should not fail, got %v", err)
	}
}

type fakePutEvents struct {
	input *eventbridge.PutEventsInput
	out   *eventbridge.PutEventsOutput
	err   error
}

func (f *fakePutEvents) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridge_PublishesRawJSON(t *testing.T) {
	client := &fakePutEvents{}
	d := NewEventBridge(client, "graph-updates")

	if err := d.Dispatch(context.Background(), UpdateReceivedName, NewUpdateReceived(samplePayload)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	entry := client.input.Entries[0]
	if aws.ToString(entry.Detail) != samplePayload {
		t.Errorf("expected raw body as detail, got %s", aws.ToString(entry.Detail))
	}
	if aws.ToString(entry.DetailType) != UpdateReceivedName {
		t.Errorf("unexpected detail type: %s", aws.ToString(entry.DetailType))
	}
	if aws.ToString(entry.Source) != EventSource || aws.ToString(entry.EventBusName) != "graph-updates" {
		t.Errorf("unexpected source/bus: %s/%s", aws.ToString(entry.Source), aws.ToString(entry.EventBusName))
	}
}

func TestEventBridge_WrapsNonJSON(t *testing.T) {
	client := &fakePutEvents{}
	d := NewEventBridge(client, "")

	if err := d.Dispatch(context.Background(), UpdateReceivedName, NewUpdateReceived("a=b")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := aws.ToString(client.input.Entries[0].Detail); got != `{"content":"a=b"}` {
		t.Errorf("unexpected detail: %s", got)
	}
	if client.input.Entries[0].EventBusName != nil {
		t.Errorf("default bus should leave EventBusName unset")
	}
}

func TestEventBridge_WrapsNonObjectJSON(t *testing.T) {
	tests := map[string]string{
		`123`:   `{"content":"123"}`,
		`[1,2]`: `{"content":"[1,2]"}`,
		`null`:  `{"content":"null"}`,
		`"s"`:   `{"content":"\"s\""}`,
	}
	for body, want := range tests {
		client := &fakePutEvents{}
		if err := NewEventBridge(client, "").Dispatch(context.Background(), UpdateReceivedName, NewUpdateReceived(body)); err != nil {
			t.Fatalf("dispatch %s: %v", body, err)
		}
		if got := aws.ToString(client.input.Entries[0].Detail); got != want {
			t.Errorf("body %s: detail = %s, want %s", body, got, want)
		}
	}
}

func TestEventBridge_FailedEntry(t *testing.T) {
	client := &fakePutEvents{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []eventbridgetypes.PutEventsResultEntry{{
			ErrorCode:    aws.String("ThrottlingException"),
			ErrorMessage: aws.String("slow down"),
		}},
	}}

	err := NewEventBridge(client, "").Dispatch(context.Background(), UpdateReceivedName, NewUpdateReceived("{}"))
	if err == nil {
		t.Fatal("expected an error for a failed entry")
	}
}

func TestEventBridge_ClientError(t *testing.T) {
	client := &fakePutEvents{err: errors.New("network")}
	err := NewEventBridge(client, "").Dispatch(context.Background(), UpdateReceivedName, NewUpdateReceived("{}"))
	if !errors.Is(err, client.err) {
		t.Errorf("expected wrapped client error, got %v", err)
	}
}
