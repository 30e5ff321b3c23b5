package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	t.Run("strips tags", func(t *testing.T) {
		out := StripHTML("<p>Hello <b>world</b></p>")

		assert.Equal(t, "Hello world", out)
	})

	t.Run("removes scripts and styles", func(t *testing.T) {
		input := `<html><head><title>t</title></head><body>
			<script>alert("x")</script>
			<style>body { color: red }</style>
			<p>visible</p></body></html>`

		out := StripHTML(input)

		assert.Equal(t, "visible", out)
		assert.NotContains(t, out, "alert")
		assert.NotContains(t, out, "color")
	})

	t.Run("decodes entities", func(t *testing.T) {
		out := StripHTML("<p>a &amp; b &lt;c&gt;</p>")

		assert.Equal(t, "a & b <c>", out)
	})

	t.Run("block elements become line breaks", func(t *testing.T) {
		out := StripHTML("<h1>Title</h1><p>first</p><p>second</p>")

		assert.Equal(t, "Title\nfirst\nsecond", out)
	})

	t.Run("removes comments", func(t *testing.T) {
		out := StripHTML("before<!-- hidden -->after")

		assert.Equal(t, "beforeafter", out)
	})

	t.Run("collapses whitespace", func(t *testing.T) {
		out := StripHTML("<p>a    b\t\tc</p>")

		assert.Equal(t, "a b c", out)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", StripHTML(""))
	})
}
