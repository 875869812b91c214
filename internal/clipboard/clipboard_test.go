package clipboard

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newFake() (*System, *string) {
	var board string
	return &System{
		write: func(s string) error { board = s; return nil },
		read:  func() (string, error) { return board, nil },
		log:   zerolog.Nop(),
	}, &board
}

func TestCopy(t *testing.T) {
	c, board := newFake()

	if err := c.Copy("Doctor: Dr. Rao"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if *board != "Doctor: Dr. Rao" {
		t.Errorf("clipboard = %q", *board)
	}

	got, err := c.Read()
	if err != nil || got != "Doctor: Dr. Rao" {
		t.Errorf("Read = %q, %v", got, err)
	}
}

func TestCopyBlankKeepsClipboard(t *testing.T) {
	c, board := newFake()
	*board = "previous"

	if err := c.Copy("  \n"); err != nil {
		t.Fatal(err)
	}
	if *board != "previous" {
		t.Errorf("blank copy replaced clipboard with %q", *board)
	}
}

func TestCopyErrors(t *testing.T) {
	c, _ := newFake()
	c.write = func(string) error { return errors.New("no display") }
	if err := c.Copy("x"); err == nil {
		t.Error("expected write error")
	}

	c.unsupported = true
	if err := c.Copy("x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := c.Read(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported from Read, got %v", err)
	}
}
