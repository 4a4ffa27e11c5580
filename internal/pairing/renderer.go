package pairing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Renderer presents a challenge payload to a human.
type Renderer interface {
	Render(payload string) error
}

// Dismisser is implemented by renderers whose output must be removed once
// the challenge is no longer valid.
type Dismisser interface {
	Dismiss() error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(payload string) error

func (f RendererFunc) Render(payload string) error { return f(payload) }

// ConsoleRenderer prints linking instructions and the raw payload.
type ConsoleRenderer struct {
	Out io.Writer
}

func (r ConsoleRenderer) Render(payload string) error {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintf(out, `
Link this device:
  1. Open the messaging app on your phone
  2. Go to Settings > Linked Devices > Link a Device
  3. Scan a QR code made from the line below (it refreshes every few seconds)

%s

`, payload)
	return err
}

// FileRenderer writes the payload to Path for an external QR tool and
// removes the file on Dismiss.
type FileRenderer struct {
	Path string
}

func (r FileRenderer) Render(payload string) error {
	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(r.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.WriteString(payload + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, r.Path)
}

func (r FileRenderer) Dismiss() error {
	err := os.Remove(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type multi []Renderer

// Multi renders to every r in order. Its Dismiss dismisses every member
// that supports it.
func Multi(rs ...Renderer) Renderer {
	return multi(rs)
}

func (m multi) Render(payload string) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Dismiss() error {
	var errs []error
	for _, r := range m {
		if d, ok := r.(Dismisser); ok {
			if err := d.Dismiss(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
