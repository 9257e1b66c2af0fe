package script

import (
	"context"
	"strings"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/fallback"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/watchdog"
	"github.com/GriffinCanCode/freezeguard/internal/httpwatch"
	"github.com/dop251/goja"
)

// guardObject exposes the host-facing guard API to scenarios.
func (r *Runtime) guardObject() map[string]interface{} {
	g := r.guard
	return map[string]interface{}{
		// guard.modal(name, contentSelector, [overlaySelector])
		"modal": func(call goja.FunctionCall) goja.Value {
			opts := modal.Options{
				Name:    call.Argument(0).String(),
				Content: r.first(call.Argument(1)),
				Overlay: r.first(call.Argument(2)),
			}
			return r.vm.ToValue(r.modalHandle(g.NewModal(opts)))
		},
		"track": func(label string) map[string]interface{} {
			return r.operationHandle(g.Track(context.Background(), label))
		},
		// guard.fetch(url, [method], [body]) runs a tracked request
		"fetch": func(call goja.FunctionCall) goja.Value {
			return r.vm.ToValue(r.fetch(
				call.Argument(0).String(),
				optionalString(call.Argument(1), "GET"),
				call.Argument(2),
			))
		},
		"recordRender": func(component string) bool {
			_, fired := g.RecordRender(component)
			return fired
		},
		"forceFallback": func(call goja.FunctionCall) goja.Value {
			reason := fallback.ReasonManual
			if arg := call.Argument(0); !goja.IsUndefined(arg) {
				reason = arg.String()
			}
			return r.vm.ToValue(recoveryValue(g.ForceFallback(reason)))
		},
		"freezeDetected": func(reason string) map[string]interface{} {
			return recoveryValue(g.FreezeDetected(reason))
		},
		"activity": func() {
			g.RecordActivity()
		},
		"advance": func(ms int64) int {
			adv, ok := g.Scheduler().(Advancer)
			if !ok {
				r.throw(ErrNoVirtualClock)
			}
			return adv.Advance(time.Duration(ms) * time.Millisecond)
		},
		"sweep": func() map[string]interface{} {
			res := g.Cleanup()
			return map[string]interface{}{
				"removed":        res.Removed,
				"stylesReset":    res.StylesReset,
				"classesRemoved": res.ClassesRemoved,
				"refocused":      res.Refocused,
			}
		},
		"attempts": func() int {
			return g.Fallback().Attempts()
		},
		"pending": func() int {
			return g.Watchdog().Pending()
		},
		"stats": func() interface{} {
			return g.Snapshot()
		},
	}
}

func (r *Runtime) modalHandle(c *modal.Controller) map[string]interface{} {
	return map[string]interface{}{
		"id":   c.ID().String(),
		"name": c.Name(),
		"open": func() {
			if err := c.Open(); err != nil {
				r.throw(err)
			}
		},
		"close": func() {
			if err := c.Close(); err != nil {
				r.throw(err)
			}
		},
		"forceClose": c.ForceClose,
		"destroy":    c.Destroy,
		"state": func() string {
			return c.State().String()
		},
	}
}

func (r *Runtime) operationHandle(op *watchdog.Operation) map[string]interface{} {
	return map[string]interface{}{
		"id":       op.ID.String(),
		"label":    op.Label,
		"complete": op.Complete,
		"cancel":   op.Cancel,
		"error": func() interface{} {
			if err := op.Err(); err != nil {
				return err.Error()
			}
			return nil
		},
	}
}

func recoveryValue(rec fallback.Recovery) map[string]interface{} {
	return map[string]interface{}{
		"kind":    string(rec.Kind),
		"reason":  rec.Reason,
		"attempt": rec.Attempt,
		"aborted": rec.Aborted,
		"removed": rec.Swept.Removed,
	}
}

// documentObject exposes inspection and event helpers for the document.
func (r *Runtime) documentObject() map[string]interface{} {
	return map[string]interface{}{
		"count": func(selector string) int {
			return len(r.document().Query(selector))
		},
		"dispatch": func(eventType, selector string) int {
			doc := r.document()
			return doc.Dispatch(eventType, r.firstOf(selector))
		},
		"click": func(selector string) int {
			return r.document().Dispatch("click", r.firstOf(selector))
		},
		"attr": func(selector, name string) interface{} {
			v, ok := r.document().Attr(r.firstOf(selector), name)
			if !ok {
				return nil
			}
			return v
		},
		"setRect": func(selector string, width, height float64) {
			r.document().SetRect(r.firstOf(selector), dom.Rect{Width: width, Height: height})
		},
		"bodyStyle": func(property string) string {
			return r.document().BodyStyle(property)
		},
		"setBodyStyle": func(property, value string) {
			if err := r.document().SetBodyStyle(property, value); err != nil {
				r.throw(err)
			}
		},
		"hasBodyClass": func(class string) bool {
			return r.document().HasBodyClass(class)
		},
		"warnings": func() []string {
			return r.document().Warnings()
		},
		"reloads": func() int {
			return r.document().Reloads()
		},
		"html": func() string {
			out, err := r.document().HTML()
			if err != nil {
				r.throw(err)
			}
			return out
		},
	}
}

func (r *Runtime) document() *dom.Document {
	if r.doc == nil {
		r.throw(dom.ErrUnavailable)
	}
	return r.doc
}

// first resolves an optional selector argument to its first match.
func (r *Runtime) first(arg goja.Value) dom.Node {
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) || r.doc == nil {
		return nil
	}
	return r.firstOf(arg.String())
}

func (r *Runtime) firstOf(selector string) dom.Node {
	nodes := r.document().Query(selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func (r *Runtime) fetch(url, method string, body goja.Value) map[string]interface{} {
	var payload interface{}
	if body != nil && !goja.IsUndefined(body) && !goja.IsNull(body) {
		payload = body.Export()
	}

	resp, err := r.client.Do(r.ctx, strings.ToUpper(method), url, payload)
	out := map[string]interface{}{"ok": false, "status": 0}
	if err != nil {
		out["error"] = err.Error()
		out["watchdog"] = httpwatch.IsWatchdogCancel(err)
		return out
	}
	out["ok"] = resp.IsSuccess()
	out["status"] = resp.StatusCode()
	out["body"] = resp.String()
	return out
}

func optionalString(v goja.Value, def string) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return def
	}
	return v.String()
}
