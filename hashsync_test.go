package hashsync

import "testing"

func TestFacadeController(t *testing.T) {
	loc := NewMemoryLocation("#docs/intro")

	var changes []Change
	ctrl := NewController(loc,
		WithFormat(MustTemplate("{section}/{id}", WithQuery(QueryKeys("tab")))),
		WithDefault(DefaultValue(NewMapping(KV("section", "home"), KV("id", "index")))),
		WithOnChange(func(ch Change) { changes = append(changes, ch) }),
	)
	ctrl.Enable()
	ctrl.Check()

	if len(changes) != 1 || changes[0].Diff["section"].Op != OpAdd {
		t.Fatalf("changes = %+v, want one initial add", changes)
	}

	ctrl.Update(NewMapping(KV("tab", "2")))
	ctrl.Write()
	if got := loc.Hash(); got != "#docs/intro?tab=2" {
		t.Errorf("hash = %q", got)
	}

	loc.SetHash("nonsense")
	if got := loc.Hash(); got != "#home/index" {
		t.Errorf("hash after default = %q, want #home/index", got)
	}
}

func TestFacadeCompare(t *testing.T) {
	d := Compare(NewMapping(KV("z", "4")), NewMapping(KV("z", 4), KV("x", 1)))
	if len(d) != 1 || d["x"].Op != OpAdd {
		t.Errorf("Compare = %+v", d)
	}
	if got := Tile().Format(NewMapping(KV("z", 1), KV("x", 0.5), KV("y", 2))); got != "1/2/1" {
		t.Errorf("Tile().Format = %q, want %q", got, "1/2/1")
	}
}
