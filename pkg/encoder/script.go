package encoder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// DefaultEntryPoint is the global function the portal routine exports.
const DefaultEntryPoint = "bder"

// ErrInvalidKeyMaterial is returned when the key material cannot be loaded as
// an encoder routine. Cached copies of such material must be discarded.
var ErrInvalidKeyMaterial = errors.New("invalid encoder key material")

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// ScriptEncoder runs a portal-supplied JavaScript routine with goja. The key
// material is the script source; it is compiled once and reused until the
// material changes. Calls are serialized because a goja runtime is not safe for
// concurrent use.
type ScriptEncoder struct {
	entry string

	mu     sync.Mutex
	digest [sha256.Size]byte
	vm     *goja.Runtime
	fn     goja.Callable
}

// NewScriptEncoder creates a ScriptEncoder calling entry(payload, version).
func NewScriptEncoder(entry string) *ScriptEncoder {
	if entry == "" {
		entry = DefaultEntryPoint
	}
	return &ScriptEncoder{entry: entry}
}

// Encode implements Encoder.
func (e *ScriptEncoder) Encode(ctx context.Context, payload, keyMaterial []byte, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.load(keyMaterial); err != nil {
		return "", err
	}

	done := make(chan struct{})
	watcherDone := make(chan struct{})
	vm := e.vm
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.fn(goja.Undefined(), vm.ToValue(string(payload)), vm.ToValue(version))
	close(done)
	<-watcherDone
	if err != nil {
		// An interrupted runtime is not reused.
		e.vm, e.fn = nil, nil
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause := interrupted.Unwrap(); cause != nil {
				return "", cause
			}
			return "", context.Canceled
		}
		return "", fmt.Errorf("run %s: %w", e.entry, err)
	}
	// ctx may have fired after the routine returned; the flag would abort the next call.
	vm.ClearInterrupt()
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return "", fmt.Errorf("run %s: no result", e.entry)
	}
	return val.String(), nil
}

// Check loads keyMaterial without running the routine, so unusable material
// is reported at startup instead of on the first login.
func (e *ScriptEncoder) Check(keyMaterial []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(keyMaterial)
}

func (e *ScriptEncoder) load(keyMaterial []byte) error {
	digest := sha256.Sum256(keyMaterial)
	if e.vm != nil && digest == e.digest {
		return nil
	}

	if bytes.HasPrefix(keyMaterial, wasmMagic) {
		return fmt.Errorf("%w: got a WebAssembly module, expected a JavaScript routine exporting %s", ErrInvalidKeyMaterial, e.entry)
	}
	program, err := goja.Compile("encoder.js", string(keyMaterial), false)
	if err != nil {
		return fmt.Errorf("compile encoder: %w: %w", ErrInvalidKeyMaterial, err)
	}
	vm := goja.New()
	if _, err := vm.RunProgram(program); err != nil {
		return fmt.Errorf("load encoder: %w: %w", ErrInvalidKeyMaterial, err)
	}
	fn, ok := goja.AssertFunction(vm.Get(e.entry))
	if !ok {
		return fmt.Errorf("load encoder: %w: %s is not a function", ErrInvalidKeyMaterial, e.entry)
	}

	e.vm, e.fn, e.digest = vm, fn, digest
	return nil
}
