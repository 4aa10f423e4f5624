package plugin

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/quota/bundle"
	"github.com/xraph/quota/feature"
)

type recorder struct {
	name     string
	composed atomic.Int32
	short    atomic.Int32
	fail     bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnPackageComposed(_ context.Context, _ *bundle.Package) error {
	r.composed.Add(1)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) OnBalanceInsufficient(_ context.Context, _ string, _ feature.Key, _, _ int64) error {
	r.short.Add(1)
	return nil
}


type blocking struct{ release chan struct{} }

func (b *blocking) Name() string { return "blocking" }

func (b *blocking) OnPackageDeactivated(_ context.Context, _ string) error {
	<-b.release
	return nil
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 || r.Get("a") == nil || r.Get("b") != nil {
		t.Errorf("unexpected registry state: %d plugins", r.Count())
	}
}

func TestEmitDispatchesByInterface(t *testing.T) {
	r := NewRegistry()
	ok := &recorder{name: "ok"}
	bad := &recorder{name: "bad", fail: true}
	_ = r.Register(ok)
	_ = r.Register(bad)

	ctx := context.Background()
	r.EmitPackageComposed(ctx, &bundle.Package{})
	r.EmitBalanceInsufficient(ctx, "sub_1", feature.Views, 3, 1)
	r.EmitPromoCreated(ctx, nil)

	if ok.composed.Load() != 1 || bad.composed.Load() != 1 {
		t.Errorf("composed hooks: %d / %d", ok.composed.Load(), bad.composed.Load())
	}
	if ok.short.Load() != 1 {
		t.Errorf("insufficient hook: %d", ok.short.Load())
	}
}

func TestEmitTimeout(t *testing.T) {
	r := NewRegistry().WithTimeout(20 * time.Millisecond)
	b := &blocking{release: make(chan struct{})}
	defer close(b.release)
	_ = r.Register(b)

	start := time.Now()
	r.EmitPackageDeactivated(context.Background(), "pkg_1")
	if time.Since(start) > time.Second {
		t.Error("emit did not honor the timeout")
	}
}

func TestImplementedInterfaces(t *testing.T) {
	names := implementedInterfaces(&recorder{name: "x"})
	if len(names) != 2 {
		t.Errorf("got %v", names)
	}
}
