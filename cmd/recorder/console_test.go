package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"session-recorder/internal/protocol"
	"session-recorder/internal/region"
)

type fakeCtrl struct {
	starts, stops int
	notes         []string
	annotateErr   error
}

func (c *fakeCtrl) Start() error {
	c.starts++
	return nil
}

func (c *fakeCtrl) Stop() error {
	c.stops++
	return nil
}

func (c *fakeCtrl) Annotate(text string) error {
	if c.annotateErr != nil {
		return c.annotateErr
	}
	c.notes = append(c.notes, text)
	return nil
}

func (c *fakeCtrl) SetRegion(region.Region) {}

func (c *fakeCtrl) Status() protocol.Reply {
	return protocol.Reply{OK: true, State: "active", Session: &protocol.SessionInfo{ID: "s1", Frames: 3}}
}

func TestReadConsole(t *testing.T) {
	ctrl := &fakeCtrl{}
	var out bytes.Buffer

	readConsole(strings.NewReader("/start\nfirst note\n\n  second  \n/status\n/stop\n"), &out, ctrl)

	assert.Equal(t, 1, ctrl.starts)
	assert.Equal(t, 1, ctrl.stops)
	assert.Equal(t, []string{"first note", "second"}, ctrl.notes)
	assert.Contains(t, out.String(), "State: active | s1 | frames=3")
}

func TestHandleLineReportsErrors(t *testing.T) {
	ctrl := &fakeCtrl{annotateErr: errors.New("annotation text is empty")}
	var out bytes.Buffer

	handleLine(&out, ctrl, "note")
	assert.Contains(t, out.String(), "annotation text is empty")
	assert.NotContains(t, out.String(), "Noted")
}
