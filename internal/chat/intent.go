package chat

import (
	"context"
	"fmt"
)

// Intent is a user action forwarded from the presentation layer.
type Intent interface {
	intent()
}

type SubmitIntent struct {
	Text string
}

type ResetIntent struct{}

func (SubmitIntent) intent() {}
func (ResetIntent) intent()  {}

// Dispatch applies an intent. A SubmitIntent blocks like Submit.
func (s *Store) Dispatch(ctx context.Context, in Intent) error {
	switch in := in.(type) {
	case SubmitIntent:
		return s.Submit(ctx, in.Text)
	case ResetIntent:
		s.Reset()
		return nil
	default:
		return fmt.Errorf("unknown intent %T", in)
	}
}
