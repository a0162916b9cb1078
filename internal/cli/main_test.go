package cli

import (
	"os"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	// Assertions match plain PASS/FAIL markers.
	color.NoColor = true
	os.Exit(m.Run())
}
