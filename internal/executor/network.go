package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// runRequest performs a network action. Outside a strictly serial chain
// the call detaches so the executing thread never blocks on the network;
// the invocation's Wait still joins it.
func (e *Executor) runRequest(ctx context.Context, inv *Invocation, env *env, req ir.Request, strictSerial bool) error {
	if strictSerial {
		return e.doRequest(ctx, inv, env, req)
	}
	inv.detached.Add(1)
	go func() {
		defer inv.detached.Done()
		e.doRequest(ctx, inv, env, req)
	}()
	return nil
}

func (e *Executor) doRequest(ctx context.Context, inv *Invocation, env *env, req ir.Request) error {
	endpoint, err := env.resolve(req.Endpoint)
	if err != nil {
		inv.fail(ir.KindRequest, err)
		return err
	}
	url := value.AsString(endpoint)

	var bodyReader io.Reader
	if req.Body != nil {
		body, err := env.resolve(req.Body)
		if err != nil {
			inv.fail(ir.KindRequest, err)
			return err
		}
		raw, err := value.Marshal(body)
		if err != nil {
			inv.fail(ir.KindRequest, err)
			return err
		}
		bodyReader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		inv.fail(ir.KindRequest, err)
		return err
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for name, desc := range req.Headers {
		v, err := env.resolve(desc)
		if err != nil {
			inv.fail(ir.KindRequest, err)
			return err
		}
		httpReq.Header.Set(name, value.AsString(v))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		inv.fail(ir.KindRequest, err)
		envelope := value.Object{"error": value.String(err.Error())}
		e.runFollowUp(ctx, inv, env, req.OnError, envelope)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		inv.fail(ir.KindRequest, err)
		return err
	}
	body := decodeBody(raw)
	envelope := value.Object{
		"status": value.Int(int64(resp.StatusCode)),
		"body":   body,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
		inv.fail(ir.KindRequest, err)
		e.runFollowUp(ctx, inv, env, req.OnError, envelope)
		return err
	}

	if err := e.saveResponse(env, req.SaveTo, body); err != nil {
		inv.fail(ir.KindRequest, err)
		return err
	}
	e.runFollowUp(ctx, inv, env, req.OnSuccess, envelope)
	return nil
}

// decodeBody reads the response as a value tree, falling back to the raw
// text for non-JSON responses.
func decodeBody(raw []byte) value.Value {
	if len(raw) == 0 {
		return value.Null{}
	}
	v, err := value.Decode(raw)
	if err != nil {
		return value.String(string(raw))
	}
	return v
}

// saveResponse applies the response-to-store mappings.
func (e *Executor) saveResponse(env *env, mappings []ir.ResponseMapping, body value.Value) error {
	for _, m := range mappings {
		p, err := keypath.Parse(m.ResponsePath)
		if err != nil {
			return fmt.Errorf("saveTo %q: %w", m.ResponsePath, err)
		}
		v, ok := keypath.Get(body, p)
		if !ok {
			continue
		}
		s, err := env.store(m.Ref)
		if err != nil {
			return err
		}
		if err := s.Set(m.KeyPath, v); err != nil {
			return err
		}
	}
	return nil
}

// runFollowUp executes the onSuccess/onError sub-sequence against the
// response envelope as its event data.
func (e *Executor) runFollowUp(ctx context.Context, inv *Invocation, env *env, actions []ir.ActionDesc, envelope value.Value) {
	if len(actions) == 0 {
		return
	}
	if err := e.runList(ctx, inv, env.withEvent(envelope), actions, true, false); err != nil {
		e.logger.Warn("request follow-up failed", "err", err)
	}
}
