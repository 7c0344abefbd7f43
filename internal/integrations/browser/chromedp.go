package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultActionTimeout = 30 * time.Second

type Options struct {
	Headless bool
	// ActionTimeout bounds each driver call. Zero means 30s.
	ActionTimeout time.Duration
}

// Driver drives a single Chrome tab. It is not safe for concurrent use.
type Driver struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New launches Chrome and opens one tab. Close releases both.
func New(parent context.Context, opts Options) (*Driver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", opts.Headless))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	timeout := opts.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	return &Driver{ctx: tabCtx, cancel: cancel, timeout: timeout}, nil
}

func (d *Driver) Close() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, "navigate", chromedp.Navigate(url))
}

func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	return d.run(ctx, "fill "+selector,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Select sets a <select> value and fires change so framework bindings see it.
func (d *Driver) Select(ctx context.Context, selector, value string) error {
	return d.SetValue(ctx, selector, value)
}

// SetValue assigns value through the element's native value setter and fires
// bubbling input and change events. Use it for fields that do not accept
// typed text, such as time and date inputs; React ignores a plain
// el.value assignment.
func (d *Driver) SetValue(ctx context.Context, selector, value string) error {
	var ok bool
	err := d.run(ctx, "set "+selector,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(setValueJS(selector, value), &ok),
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("browser: set %s: element not found", selector)
	}
	return nil
}

// Check ticks the checkbox whose label contains label. An already ticked box
// is left as is.
func (d *Driver) Check(ctx context.Context, label string) error {
	xp := checkboxXPath(label)
	var found bool
	err := d.run(ctx, "check "+label,
		chromedp.WaitReady(xp, chromedp.BySearch),
		chromedp.Evaluate(checkJS(xp), &found),
	)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("browser: check %q: checkbox not found", label)
	}
	return nil
}

// Click presses the button whose visible text is label.
func (d *Driver) Click(ctx context.Context, label string) error {
	return d.run(ctx, "click "+label, chromedp.Click(buttonXPath(label), chromedp.BySearch))
}

func (d *Driver) WaitForText(ctx context.Context, text string) error {
	return d.run(ctx, "wait for text", chromedp.WaitVisible(textXPath(text), chromedp.BySearch))
}

func (d *Driver) Reload(ctx context.Context) error {
	return d.run(ctx, "reload", chromedp.Reload())
}

func (d *Driver) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if d.ctx == nil {
		return errors.New("browser: driver not started")
	}
	runCtx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("browser: %s: %w", op, err)
	}
	return nil
}

func checkboxXPath(label string) string {
	l := xpathLiteral(label)
	return fmt.Sprintf(
		`//input[@type="checkbox"][@id=//label[contains(normalize-space(.), %[1]s)]/@for]`+
			` | //label[contains(normalize-space(.), %[1]s)]//input[@type="checkbox"]`+
			` | //input[@type="checkbox"][@aria-label=%[1]s]`,
		l)
}

func buttonXPath(label string) string {
	l := xpathLiteral(label)
	return fmt.Sprintf(`//button[normalize-space(.)=%[1]s] | //input[@type="submit"][@value=%[1]s]`, l)
}

func textXPath(text string) string {
	return fmt.Sprintf(`//*[text()[contains(normalize-space(.), %s)]]`, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func setValueJS(selector, value string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const proto = el instanceof HTMLSelectElement ? HTMLSelectElement.prototype
    : el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
    : HTMLInputElement.prototype;
  Object.getOwnPropertyDescriptor(proto, "value").set.call(el, %s);
  el.dispatchEvent(new Event("input", { bubbles: true }));
  el.dispatchEvent(new Event("change", { bubbles: true }));
  return true;
})()`, jsString(selector), jsString(value))
}

func checkJS(xp string) string {
	return fmt.Sprintf(`(() => {
  const el = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  if (!el) return false;
  if (!el.checked) el.click();
  return true;
})()`, jsString(xp))
}
