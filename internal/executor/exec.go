package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/uipulse/internal/ir"
	"github.com/roach88/uipulse/internal/store"
	"github.com/roach88/uipulse/internal/value"
)

// run executes one action. strictSerial reports whether every ancestor is
// a stop-on-error serial sequence; request actions only run synchronously
// in that position. Failures are recorded on the invocation where they
// happen and propagated as errors for stop-on-error control flow.
func (e *Executor) run(ctx context.Context, inv *Invocation, env *env, a ir.ActionDesc, strictSerial bool) error {
	switch action := a.(type) {
	case ir.SetValue:
		return e.runMutation(inv, env, a, func(s *store.Store) error {
			v, err := env.resolve(action.Value)
			if err != nil {
				return err
			}
			return s.Set(action.KeyPath, v)
		}, action.Ref)

	case ir.MergeValue:
		return e.runMutation(inv, env, a, func(s *store.Store) error {
			v, err := env.resolve(action.Value)
			if err != nil {
				return err
			}
			obj, ok := v.(value.Object)
			if !ok {
				return fmt.Errorf("merge needs an object, got %T", v)
			}
			return s.Merge(action.KeyPath, obj)
		}, action.Ref)

	case ir.RemoveValue:
		return e.runMutation(inv, env, a, func(s *store.Store) error {
			return s.Remove(action.KeyPath)
		}, action.Ref)

	case ir.TxnAction:
		return e.runTransaction(ctx, inv, env, action)

	case ir.Sequence:
		if action.Strategy == ir.StrategyParallel {
			return e.runParallel(ctx, inv, env, action.Actions)
		}
		return e.runList(ctx, inv, env, action.Actions, action.StopOnError, strictSerial && action.StopOnError)

	case ir.Conditional:
		// The condition is evaluated once; store serialization makes the
		// reads a consistent snapshot.
		if env.evalCond(action.Cond) {
			return e.runList(ctx, inv, env, action.Then, true, strictSerial)
		}
		return e.runList(ctx, inv, env, action.Else, true, strictSerial)

	case ir.Switch:
		return e.runSwitch(ctx, inv, env, action, strictSerial)

	case ir.Request:
		return e.runRequest(ctx, inv, env, action, strictSerial)

	case ir.Navigate, ir.ShowToast, ir.ShowAlert, ir.ShowSheet,
		ir.DismissSheet, ir.ShowLoading, ir.HideLoading, ir.SystemCall:
		return e.runHostLeaf(ctx, inv, env, a, strictSerial)

	default:
		err := fmt.Errorf("unknown action descriptor %T", a)
		inv.fail("unknown", err)
		return err
	}
}

// runMutation resolves and applies one store mutation.
func (e *Executor) runMutation(inv *Invocation, env *env, a ir.ActionDesc, fn func(*store.Store) error, ref ir.StoreRef) error {
	s, err := env.store(ref)
	if err == nil {
		err = fn(s)
	}
	if err != nil {
		inv.fail(actionKind(a), err)
		return err
	}
	return nil
}

// runTransaction commits the batch atomically. All mutations must target
// the same store.
func (e *Executor) runTransaction(ctx context.Context, inv *Invocation, env *env, txn ir.TxnAction) error {
	if len(txn.Actions) == 0 {
		return nil
	}
	ref, err := txnRef(txn)
	if err != nil {
		inv.fail(ir.KindTransaction, err)
		return err
	}
	s, err := env.store(ref)
	if err != nil {
		inv.fail(ir.KindTransaction, err)
		return err
	}

	err = s.Transaction(func(tx *store.Store) error {
		for _, sub := range txn.Actions {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch m := sub.(type) {
			case ir.SetValue:
				v, rerr := env.resolve(m.Value)
				if rerr != nil {
					return rerr
				}
				if terr := tx.Set(m.KeyPath, v); terr != nil {
					return terr
				}
			case ir.MergeValue:
				v, rerr := env.resolve(m.Value)
				if rerr != nil {
					return rerr
				}
				obj, ok := v.(value.Object)
				if !ok {
					return fmt.Errorf("merge needs an object, got %T", v)
				}
				if terr := tx.Merge(m.KeyPath, obj); terr != nil {
					return terr
				}
			case ir.RemoveValue:
				if terr := tx.Remove(m.KeyPath); terr != nil {
					return terr
				}
			default:
				return fmt.Errorf("transaction admits only store mutations, got %T", sub)
			}
		}
		return nil
	})
	if err != nil {
		inv.fail(ir.KindTransaction, err)
		return err
	}
	return nil
}

// txnRef requires every mutation in the batch to name the same store.
func txnRef(txn ir.TxnAction) (ir.StoreRef, error) {
	var ref ir.StoreRef
	for i, sub := range txn.Actions {
		var r ir.StoreRef
		switch m := sub.(type) {
		case ir.SetValue:
			r = m.Ref
		case ir.MergeValue:
			r = m.Ref
		case ir.RemoveValue:
			r = m.Ref
		default:
			return ref, fmt.Errorf("transaction admits only store mutations, got %T", sub)
		}
		if i == 0 {
			ref = r
		} else if r != ref {
			return ref, fmt.Errorf("transaction spans stores %q and %q", ref.Store, r.Store)
		}
	}
	return ref, nil
}

// runList executes actions in order. stopOnError short-circuits at the
// first failure; otherwise failures are recorded and the list continues.
func (e *Executor) runList(ctx context.Context, inv *Invocation, env *env, actions []ir.ActionDesc, stopOnError, strictSerial bool) error {
	var firstErr error
	for _, sub := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.run(ctx, inv, env, sub, strictSerial); err != nil {
			if stopOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runParallel fans out sub-actions and joins on all of them, collecting
// failures. A failure in one branch never cancels siblings in flight.
func (e *Executor) runParallel(ctx context.Context, inv *Invocation, env *env, actions []ir.ActionDesc) error {
	errs := make([]error, len(actions))
	var wg sync.WaitGroup
	for i, sub := range actions {
		wg.Add(1)
		go func(i int, sub ir.ActionDesc) {
			defer wg.Done()
			errs[i] = e.run(ctx, inv, env, sub, false)
		}(i, sub)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (e *Executor) runSwitch(ctx context.Context, inv *Invocation, env *env, sw ir.Switch, strictSerial bool) error {
	discriminant, err := env.resolve(sw.Value)
	if err != nil {
		inv.fail(ir.KindSwitch, err)
		return err
	}
	for _, cs := range sw.Cases {
		match := env.resolveLenient(cs.Match)
		if value.Equal(discriminant, match) {
			return e.runList(ctx, inv, env, cs.Actions, true, strictSerial)
		}
	}
	return e.runList(ctx, inv, env, sw.Default, true, strictSerial)
}

// runHostLeaf resolves the leaf's value positions and dispatches it to the
// registered handler; a returned follow-up action runs next.
func (e *Executor) runHostLeaf(ctx context.Context, inv *Invocation, env *env, a ir.ActionDesc, strictSerial bool) error {
	kind := actionKind(a)
	handler, ok := e.registry.lookup(kind)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrActionKindNotRegistered, kind)
		inv.fail(kind, err)
		return err
	}

	values, err := e.resolveLeaf(env, a)
	if err != nil {
		inv.fail(kind, err)
		return err
	}

	followUp, err := handler(ctx, HostCall{Kind: kind, Action: a, Values: values})
	if err != nil {
		inv.fail(kind, err)
		return err
	}
	if followUp != nil {
		return e.run(ctx, inv, env, followUp, strictSerial)
	}
	return nil
}

// resolveLeaf resolves the value positions a host handler needs.
func (e *Executor) resolveLeaf(env *env, a ir.ActionDesc) (map[string]value.Value, error) {
	values := make(map[string]value.Value)

	put := func(key string, desc ir.ValueDesc) error {
		if desc == nil {
			return nil
		}
		v, err := env.resolve(desc)
		if err != nil {
			return err
		}
		values[key] = v
		return nil
	}

	switch action := a.(type) {
	case ir.Navigate:
		for name, desc := range action.Params {
			if err := put(name, desc); err != nil {
				return nil, err
			}
		}
	case ir.ShowToast:
		if err := put("message", action.Message); err != nil {
			return nil, err
		}
	case ir.ShowAlert:
		if err := put("title", action.Title); err != nil {
			return nil, err
		}
		if err := put("message", action.Message); err != nil {
			return nil, err
		}
		labels := make(value.Array, len(action.Buttons))
		for i, btn := range action.Buttons {
			label, err := env.resolve(btn.Label)
			if err != nil {
				return nil, err
			}
			labels[i] = value.Object{
				"label": label,
				"role":  value.String(btn.Role),
			}
		}
		values["buttons"] = labels
	case ir.ShowSheet:
		if err := put("title", action.Title); err != nil {
			return nil, err
		}
		labels := make(value.Array, len(action.Options))
		for i, opt := range action.Options {
			label, err := env.resolve(opt.Label)
			if err != nil {
				return nil, err
			}
			labels[i] = value.Object{"label": label}
		}
		values["options"] = labels
	case ir.ShowLoading:
		if err := put("message", action.Message); err != nil {
			return nil, err
		}
	case ir.SystemCall:
		for name, desc := range action.Args {
			if err := put(name, desc); err != nil {
				return nil, err
			}
		}
	}
	return values, nil
}

// actionKind names a descriptor's wire kind without marshaling it.
func actionKind(a ir.ActionDesc) string {
	switch a.(type) {
	case ir.SetValue:
		return ir.KindSetValue
	case ir.RemoveValue:
		return ir.KindRemoveValue
	case ir.MergeValue:
		return ir.KindMergeValue
	case ir.TxnAction:
		return ir.KindTransaction
	case ir.Navigate:
		return ir.KindNavigate
	case ir.ShowToast:
		return ir.KindShowToast
	case ir.ShowAlert:
		return ir.KindShowAlert
	case ir.ShowSheet:
		return ir.KindShowSheet
	case ir.DismissSheet:
		return ir.KindDismissSheet
	case ir.ShowLoading:
		return ir.KindShowLoading
	case ir.HideLoading:
		return ir.KindHideLoading
	case ir.SystemCall:
		return ir.KindSystem
	case ir.Request:
		return ir.KindRequest
	case ir.Sequence:
		return ir.KindSequence
	case ir.Conditional:
		return ir.KindConditional
	case ir.Switch:
		return ir.KindSwitch
	default:
		return fmt.Sprintf("%T", a)
	}
}
