package dom

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><body class="modal-open app" style="overflow: hidden; pointer-events: none">
  <main id="app"><button id="buy">Buy</button></main>
  <div id="portal" data-state="open">
    <div class="modal-backdrop" id="inner-backdrop"></div>
    <section role="dialog" id="dialog"><input id="email"></section>
  </div>
  <div class="modal-backdrop" id="stale" style="opacity: 0.5"></div>
  <div data-overlay id="hidden-overlay" style="display: none"></div>
</body></html>`

func TestQueryCSSAndXPath(t *testing.T) {
	d := MustParse(page)

	css := d.Query(".modal-backdrop")
	require.Len(t, css, 2)
	assert.Equal(t, "div#inner-backdrop.modal-backdrop", Describe(css[0]))

	xp := d.Query(`xpath://div[@data-overlay]`)
	require.Len(t, xp, 1)
	assert.True(t, d.Matches(xp[0], "[data-overlay]"))
	assert.True(t, d.Matches(css[1], `xpath://div[@id="stale"]`))

	assert.Empty(t, d.Query("xpath://[["))
	assert.Empty(t, d.Query("div[["))
}

func TestClosestAndContains(t *testing.T) {
	d := MustParse(page)

	email := d.Query("#email")[0]
	portal := d.Query("#portal")[0]

	assert.Equal(t, portal, d.Closest(email, `[data-state="open"]`))
	assert.Nil(t, d.Closest(d.Query("#stale")[0], `[data-state="open"]`))
	assert.True(t, d.Contains(portal, email))
	assert.False(t, d.Contains(email, portal))
}

func TestRemoveJournalsOnce(t *testing.T) {
	d := MustParse(page)

	stale := d.Query("#stale")[0]
	require.NoError(t, d.Remove(stale))
	assert.ErrorIs(t, d.Remove(stale), ErrDetached)
	assert.Empty(t, d.Query("#stale"))

	journal := d.Journal()
	require.Len(t, journal, 1)
	assert.Equal(t, "remove", journal[0].Op)
}

func TestBodyStyleAndClasses(t *testing.T) {
	d := MustParse(page)

	assert.Equal(t, "hidden", d.BodyStyle("overflow"))
	assert.Equal(t, "none", d.BodyStyle("pointer-events"))

	require.NoError(t, d.SetBodyStyle("overflow", ""))
	require.NoError(t, d.SetBodyStyle("overflow", ""))
	assert.Equal(t, "", d.BodyStyle("overflow"))
	assert.Equal(t, "none", d.BodyStyle("pointer-events"))

	assert.True(t, d.HasBodyClass("modal-open"))
	require.NoError(t, d.RemoveBodyClass("modal-open"))
	require.NoError(t, d.RemoveBodyClass("modal-open"))
	assert.False(t, d.HasBodyClass("modal-open"))
	assert.True(t, d.HasBodyClass("app"))

	assert.Len(t, d.Journal(), 2)
}

func TestVisibilityAndRect(t *testing.T) {
	d := MustParse(page)

	hidden := d.Query("#hidden-overlay")[0]
	assert.False(t, d.Visible(hidden))
	assert.Zero(t, d.Rect(hidden).Area())

	dialog := d.Query("#dialog")[0]
	assert.True(t, d.Visible(dialog))
	assert.Equal(t, defaultBox, d.Rect(dialog))

	d.SetRect(dialog, Rect{Width: 0, Height: 400})
	assert.Zero(t, d.Rect(dialog).Area())

	sized := MustParse(`<body><div id="x" style="width: 20px; height: 0"></div></body>`)
	assert.Zero(t, sized.Rect(sized.Query("#x")[0]).Area())
}

func TestFocus(t *testing.T) {
	d := MustParse(page)
	body := d.Query("body")[0]
	email := d.Query("#email")[0]

	assert.Equal(t, body, d.ActiveElement())
	require.NoError(t, d.Focus(email))
	assert.Equal(t, email, d.ActiveElement())

	require.NoError(t, d.FocusBody())
	assert.Equal(t, body, d.ActiveElement())
}

func TestListenDispatchAndUnlisten(t *testing.T) {
	d := MustParse(page)

	var got []string
	off := d.Listen("click", func(e Event) { got = append(got, e.Type) }, ListenerOptions{Passive: true})

	assert.Equal(t, 1, d.Dispatch("click", nil))
	off()
	off()
	assert.Equal(t, 0, d.Dispatch("click", nil))
	assert.Equal(t, []string{"click"}, got)
	assert.Equal(t, 0, d.ListenerCount("click"))
}

func TestRepaintLeavesStyleUnchanged(t *testing.T) {
	d := MustParse(page)
	resized := 0
	d.Listen("resize", func(Event) { resized++ }, ListenerOptions{})

	before := d.BodyStyle("overflow")
	require.NoError(t, d.Repaint())

	assert.Equal(t, before, d.BodyStyle("overflow"))
	assert.Equal(t, "", d.BodyStyle("transform"))
	assert.Equal(t, 1, d.Repaints())
	assert.Equal(t, 1, resized)
	assert.Empty(t, d.Journal())
}

func TestShowWarningSanitizes(t *testing.T) {
	d := MustParse(page)

	d.ShowWarning(`Reloading <script>alert(1)</script>now`)

	toasts := d.Query("[data-guard-toast]")
	require.Len(t, toasts, 1)
	out, err := d.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.Equal(t, []string{`Reloading <script>alert(1)</script>now`}, d.Warnings())
}

func TestReloadRestoresSource(t *testing.T) {
	d := MustParse(page)
	calls := 0
	d.Listen("click", func(Event) { calls++ }, ListenerOptions{})

	require.NoError(t, d.Remove(d.Query("#stale")[0]))
	d.Reload()

	assert.Len(t, d.Query("#stale"), 1)
	assert.Equal(t, 1, d.Reloads())
	d.Dispatch("click", nil)
	assert.Equal(t, 1, calls)

	out, err := d.HTML()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `id="stale"`))
}

func TestUnavailable(t *testing.T) {
	var a Adapter = Unavailable{}

	assert.False(t, a.Available())
	assert.Nil(t, a.Query("div"))
	assert.ErrorIs(t, a.Remove(nil), ErrUnavailable)
	assert.NotPanics(t, func() { a.Listen("click", nil, ListenerOptions{})() })
}

func TestContainsIsSafeDuringRemoval(t *testing.T) {
	d := MustParse(page)
	body := d.Query("body")[0]
	overlays := d.Query(".modal-backdrop, [data-overlay]")
	require.NotEmpty(t, overlays)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, n := range overlays {
			_ = d.Remove(n)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			for _, n := range overlays {
				d.Contains(body, n)
			}
		}
	}()
	wg.Wait()

	for _, n := range overlays {
		assert.False(t, d.Contains(body, n))
	}
}
