package parse

import (
	"context"
	"errors"
	"io"
)

// Stream pumps the parser into channels in the manner of a content
// traverser: one channel of records and one of errors. The record
// channel is closed when the document is exhausted or on failure; the
// error channel carries at most one fatal error. Cancelling the context
// stops the pump.
func (p *Parser) Stream(ctx context.Context) (<-chan Record, <-chan error) {
	records := make(chan Record)
	errs := make(chan error, 1)
	go func() {
		defer close(records)
		defer close(errs)
		for {
			rec, err := p.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return records, errs
}
