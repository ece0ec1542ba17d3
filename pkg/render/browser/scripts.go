package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/rulecrawl/pkg/render"
)

// describeJS projects a node to {text, href, src}. Attribute and text nodes
// have no getAttribute, so only their text is reported.
const describeJS = `const describe = (n) => ({
	text: (n.textContent || '').trim(),
	href: (n.getAttribute && n.getAttribute('href')) || '',
	src: (n.getAttribute && n.getAttribute('src')) || '',
});`

const linksJS = `Array.from(document.querySelectorAll('a[href]'), (a) => a.href)`

const rawSourceFallbackJS = `document.documentElement ? document.documentElement.outerHTML : ''`

func structuralQueryJS(selector string) string {
	return fmt.Sprintf(`(() => {
%s
return Array.from(document.querySelectorAll(%s), describe);
})()`, describeJS, jsString(selector))
}

func treePathQueryJS(expr string) string {
	return fmt.Sprintf(`(() => {
%s
const snap = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
const out = [];
for (let i = 0; i < snap.snapshotLength; i++) out.push(describe(snap.snapshotItem(i)));
return out;
})()`, describeJS, jsString(expr))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// classifyException maps a page exception to ErrInvalidExpression when the
// expression itself could not be parsed.
func classifyException(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{"SyntaxError", "is not a valid selector", "is not a valid XPath expression"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", render.ErrInvalidExpression, err)
		}
	}
	return err
}
