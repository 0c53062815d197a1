package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/Snawoot/orbitcap/models"
)

// ErrStubMissing means a configured stub file cannot be read.
var ErrStubMissing = errors.New("stub missing")

// StubResponder replays pre-captured sign-on responses. The n-th sign-on
// call is served from the n-th file, the last file once they run out.
type StubResponder struct {
	fs    afero.Fs
	files []string
}

// type check
var _ Responder = (*StubResponder)(nil)

// NewStubResponder checks that every file exists on fs. A nil fs means the
// OS filesystem.
func NewStubResponder(fs afero.Fs, files []string) (*StubResponder, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no stub files configured", ErrStubMissing)
	}
	for _, name := range files {
		ok, err := afero.Exists(fs, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStubMissing, name, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrStubMissing, name)
		}
	}
	return &StubResponder{
		fs:    fs,
		files: append([]string(nil), files...),
	}, nil
}

func (r *StubResponder) Name() string {
	return "stub"
}

// File returns the stub served to the n-th sign-on call.
func (r *StubResponder) File(n int) string {
	idx := min(max(n, 1), len(r.files)) - 1
	return r.files[idx]
}

func (r *StubResponder) Respond(_ context.Context, n int, _ *models.CapturedRequest) (*models.CapturedResponse, error) {
	name := r.File(n)
	data, err := afero.ReadFile(r.fs, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStubMissing, name, err)
	}
	return binaryResponse(data, fmt.Sprintf("[Stub %s: %d bytes]", name, len(data))), nil
}
