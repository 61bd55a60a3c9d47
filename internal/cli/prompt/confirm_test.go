package prompt

import (
	"errors"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stub(t *testing.T, interactive bool, answer string, err error) *string {
	t.Helper()
	origInteractive, origRun := isInteractive, run
	t.Cleanup(func() { isInteractive, run = origInteractive, origRun })

	var label string
	isInteractive = func() bool { return interactive }
	run = func(p *promptui.Prompt) (string, error) {
		label, _ = p.Label.(string)
		return answer, err
	}
	return &label
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		def    bool
		want   bool
	}{
		{name: "yes", answer: "y", want: true},
		{name: "YES uppercase", answer: "YES", want: true},
		{name: "no", answer: "", err: promptui.ErrAbort},
		{name: "empty keeps default yes", answer: "", err: errors.New("empty"), def: true, want: true},
		{name: "empty keeps default no", answer: ""},
		{name: "other answer", answer: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub(t, true, tt.answer, tt.err)

			got, err := Confirm("Delete?", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirm_Label(t *testing.T) {
	label := stub(t, true, "y", nil)

	_, _ = Confirm("Delete region 1?", false)
	assert.Equal(t, "Delete region 1? [y/N]", *label)

	_, _ = Confirm("Continue?", true)
	assert.Equal(t, "Continue? [Y/n]", *label)
}

func TestConfirm_Interrupt(t *testing.T) {
	stub(t, true, "", promptui.ErrInterrupt)

	_, err := Confirm("Delete?", false)
	assert.True(t, IsAborted(err))
}

func TestConfirm_NotInteractive(t *testing.T) {
	stub(t, false, "y", nil)

	_, err := Confirm("Delete?", true)
	assert.ErrorIs(t, err, ErrNotInteractive)
}

func TestConfirmWithForce(t *testing.T) {
	stub(t, false, "", nil)

	ok, err := ConfirmWithForce("Delete?", true)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ConfirmWithForce("Delete?", false)
	assert.ErrorIs(t, err, ErrNotInteractive)
}
