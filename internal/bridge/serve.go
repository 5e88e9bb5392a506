package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const maxRequestLine = 1 << 20

// Request is one bridge call, encoded as a single JSON line.
type Request struct {
	ID     any            `json:"id,omitempty"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
}

// Response answers a Request. Exactly one of Result, Error or
// NotImplemented is set.
type Response struct {
	ID             any    `json:"id,omitempty"`
	Result         any    `json:"result,omitempty"`
	Error          *Error `json:"error,omitempty"`
	NotImplemented bool   `json:"notImplemented,omitempty"`
}

// Serve reads JSON-lines requests from in and writes one response line per
// request to out until in is exhausted or ctx is cancelled. Malformed or
// oversized lines are answered with BadRequest.
func (r *Router) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	br := bufio.NewReaderSize(in, maxRequestLine)
	w := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var resp Response
		if isPrefix {
			if err := discardLine(br); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			r.log.Debug("bridge request too long", zap.Int("limit", maxRequestLine))
			resp = Response{Error: &Error{Code: "BadRequest", Message: "request line too long"}}
		} else {
			line := strings.TrimSpace(string(raw))
			if line == "" {
				continue
			}
			resp = r.respond(ctx, line)
		}

		data, err := sonic.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func (r *Router) respond(ctx context.Context, line string) Response {
	var req Request
	if err := sonic.UnmarshalString(line, &req); err != nil {
		r.log.Debug("bad bridge request", zap.Error(err))
		return Response{Error: &Error{Code: "BadRequest", Message: err.Error()}}
	}
	if req.Method == "" {
		return Response{ID: req.ID, Error: &Error{Code: "BadRequest", Message: "missing method"}}
	}
	return r.Handle(ctx, req)
}

// discardLine skips the remainder of a line that did not fit the buffer.
func discardLine(br *bufio.Reader) error {
	for {
		_, isPrefix, err := br.ReadLine()
		if err != nil {
			return err
		}
		if !isPrefix {
			return nil
		}
	}
}
