package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchUserPrompt_NumbersLines(t *testing.T) {
	prompt := batchUserPrompt([]string{"Hello.", "Two lines\nof text."})

	assert.Contains(t, prompt, "[1] Hello.")
	// Inner breaks collapse so each entry stays on one line.
	assert.Contains(t, prompt, "[2] Two lines of text.")
}

func TestParseBatchResponse_Aligned(t *testing.T) {
	got := ParseBatchResponse("[1] 你好。\n[2] 再见。", 2)
	assert.Equal(t, []string{"你好。", "再见。"}, got)
}

func TestParseBatchResponse_OutOfOrder(t *testing.T) {
	got := ParseBatchResponse("[2] second\n[1] first", 2)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestParseBatchResponse_MissingEntriesAreEmpty(t *testing.T) {
	got := ParseBatchResponse("[1] only one", 3)
	assert.Equal(t, []string{"only one", "", ""}, got)
}

func TestParseBatchResponse_IgnoresOutOfRangeNumbers(t *testing.T) {
	got := ParseBatchResponse("[1] ok\n[7] overflow\n[0] underflow", 2)
	assert.Equal(t, []string{"ok", ""}, got)
}

func TestParseBatchResponse_UnnumberedLineFillsNextSlot(t *testing.T) {
	// Each entry went in as one prompt line, so a model that drops a
	// number must not merge two entries into one.
	got := ParseBatchResponse("[1] foo\nbar", 2)
	assert.Equal(t, []string{"foo", "bar"}, got)
}

func TestParseBatchResponse_UnnumberedLineAfterLastSlotDropped(t *testing.T) {
	got := ParseBatchResponse("[1] first\ntrailing remark", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0])
}

func TestParseBatchResponse_UnnumberedAfterInvalidNumberIsDropped(t *testing.T) {
	got := ParseBatchResponse("[9] stray\ndangling line", 2)
	assert.Equal(t, []string{"", ""}, got)
}

func TestParseBatchResponse_SkipsNoiseAndBlankLines(t *testing.T) {
	response := "Here are the translations:\n\n[1] hello\n\n[unnumbered bracket noise]\n[2] world"
	got := ParseBatchResponse(response, 2)
	assert.Equal(t, []string{"hello", "world"}, got)
}

func TestSystemPrompt_FallsBackWhenSourceUnknown(t *testing.T) {
	prompt := systemPrompt("", "Chinese")
	assert.Contains(t, prompt, "the original language")
	assert.Contains(t, prompt, "Chinese")
}

func TestNew_ValidatesProviderAndKey(t *testing.T) {
	_, err := New("openai", Config{})
	require.Error(t, err)

	_, err = New("nonsense", Config{APIKey: "k"})
	require.Error(t, err)

	for _, name := range Names() {
		p, err := New(name, Config{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}
