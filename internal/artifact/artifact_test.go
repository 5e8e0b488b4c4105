package artifact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdvanceNeverGoesBackwards(t *testing.T) {
	e := &Entry{State: StateNew}
	e.Advance(time.Now())
	require.Equal(t, StateCurrent, e.State)

	e.Advance(time.Now())
	require.Equal(t, StateOld, e.State)
	require.NotNil(t, e.EndTime)

	before := e.State
	e.Advance(time.Now())
	require.Equal(t, before, e.State)
}

func TestKeyIsResourceAndLocation(t *testing.T) {
	a := &Entry{Resource: "r1", Location: "/d/x.txt"}
	b := &Entry{Resource: "r2", Location: "/d/x.txt"}
	require.NotEqual(t, a.Key(), b.Key())
}
