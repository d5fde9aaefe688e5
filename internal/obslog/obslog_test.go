package obslog

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func Test_For_returnsTheSameLoggerForRepeatedSubsystemNames(t *testing.T) {
	a := For("test-subsystem-a")
	b := For("test-subsystem-a")
	assert.Same(t, a, b)
}

func Test_For_givesDistinctSubsystemsDistinctLoggers(t *testing.T) {
	a := For("test-subsystem-b")
	c := For("test-subsystem-c")
	assert.NotSame(t, a, c)
}

func Test_SetLevel_updatesExistingLoggers(t *testing.T) {
	lg := For("test-subsystem-d")
	SetLevel(log.WarnLevel)
	defer SetLevel(log.InfoLevel)
	assert.Equal(t, log.WarnLevel, lg.GetLevel())
}
