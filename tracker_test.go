package optimistic_test

import (
	"errors"
	"testing"

	"github.com/brunoga/optimistic"
	"github.com/brunoga/optimistic/internal/testmodels"
	"github.com/brunoga/optimistic/model"
)

type memStore struct {
	states map[string]optimistic.State
	saves  int
	err    error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]optimistic.State)}
}

func (s *memStore) SaveState(key string, state optimistic.State) error {
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.states[key] = optimistic.State{Version: state.Version, Original: state.Original.Clone()}
	return nil
}

func (s *memStore) LoadState(key string) (optimistic.State, error) {
	state, ok := s.states[key]
	if !ok {
		return state, optimistic.ErrStateNotFound
	}
	return state, nil
}

func TestTracker_LocalOpsByDiff(t *testing.T) {
	doc := testmodels.NewPerson()
	tr := optimistic.NewTracker(doc, testmodels.PersonData())

	if ops := tr.LocalOps(nil, nil); len(ops) != 0 {
		t.Fatalf("untouched document has local ops: %v", ops)
	}

	doc.Set("name", "Grace")
	doc.ChildModel("car").Set("model", "Fleetwood")

	ops := tr.LocalOps(nil, nil)
	if len(ops) != 2 {
		t.Fatalf("got %v", ops)
	}
	if _, ok := ops.Find(optimistic.OpReplace, "/car/model"); !ok {
		t.Errorf("car change missing: %v", ops)
	}
	if _, ok := ops.Find(optimistic.OpReplace, "/name"); !ok {
		t.Errorf("name change missing: %v", ops)
	}
}

func TestTracker_IncrementalLog(t *testing.T) {
	doc := testmodels.NewPerson()
	tr := optimistic.NewTracker(doc, testmodels.PersonData())
	doc.Observe(tr.Record)

	doc.ChildModel("car").Set("model", "Fleetwood")
	doc.Members("shoes").Add(testmodels.NewShoe())

	log := tr.Log()
	if len(log) != 2 {
		t.Fatalf("log = %v", log)
	}
	if !log[0].Equal(optimistic.Replace("/car/model", "Fleetwood")) {
		t.Errorf("log[0] = %v", log[0])
	}
	if log[1].Kind != optimistic.OpAdd || log[1].Path != "/shoes/-" {
		t.Errorf("log[1] = %v", log[1])
	}

	// The log is returned verbatim, whatever the snapshots say.
	ops := tr.LocalOps(testmodels.PersonData(), testmodels.PersonData())
	if len(ops) != 2 {
		t.Errorf("LocalOps ignored the log: %v", ops)
	}

	tr.ResetLog()
	if ops := tr.LocalOps(nil, nil); len(ops) != 2 {
		t.Errorf("diff after reset = %v", ops)
	}
}

func TestTracker_IgnoredFields(t *testing.T) {
	original := testmodels.PersonData()
	original["updatedAt"] = "yesterday"
	doc := testmodels.NewPerson()
	tr := optimistic.NewTracker(doc, original, optimistic.WithIgnoredFields("updatedAt"))

	if _, ok := tr.Original()["updatedAt"]; ok {
		t.Error("Original() kept an ignored field")
	}
	doc.Set("updatedAt", "today")
	if ops := tr.LocalOps(nil, nil); len(ops) != 0 {
		t.Errorf("ignored field produced %v", ops)
	}
}

func TestTracker_Comparators(t *testing.T) {
	doc := testmodels.NewPerson()
	tr := optimistic.NewTracker(doc, testmodels.PersonData(),
		optimistic.WithComparator("name", func(original, current any) (optimistic.CompareResult, optimistic.OperationSet) {
			return optimistic.CompareEqual, nil
		}),
		optimistic.WithComparator("age", func(original, current any) (optimistic.CompareResult, optimistic.OperationSet) {
			return optimistic.CompareCustom, optimistic.OperationSet{optimistic.Replace("/age", "custom")}
		}),
		optimistic.WithComparator("id", func(original, current any) (optimistic.CompareResult, optimistic.OperationSet) {
			return optimistic.CompareDefault, optimistic.OperationSet{optimistic.Remove("/ignored")}
		}),
	)

	doc.Set("name", "Grace")
	doc.Set("age", 37.0)
	doc.Set("id", 2.0)

	ops := tr.LocalOps(nil, nil)
	if len(ops) != 2 {
		t.Fatalf("got %v", ops)
	}
	if !ops[0].Equal(optimistic.Replace("/age", "custom")) {
		t.Errorf("custom operations not first: %v", ops)
	}
	if !ops[1].Equal(optimistic.Replace("/id", 2.0)) {
		t.Errorf("default comparator did not fall through: %v", ops)
	}
}

func TestTracker_SortCollections(t *testing.T) {
	doc := testmodels.NewPerson()
	tr := optimistic.NewTracker(doc, testmodels.PersonData(), optimistic.WithCollectionSort("shoes", "style"))

	doc.Members("shoes").Add(map[string]any{"id": 7.0, "style": "Adidas"})

	sorted := tr.SortCollections(doc.Materialize())
	shoes := sorted["shoes"].([]any)
	if shoes[0].(map[string]any)["style"] != "Adidas" {
		t.Errorf("shoes not sorted: %v", shoes)
	}
	if doc.Members("shoes").Models()[0].Get("style") != "Converse" {
		t.Error("sorting reordered the live collection")
	}

	ops := tr.LocalOps(nil, nil)
	if len(ops) != 1 || ops[0].Path != "/shoes/0" {
		t.Errorf("sorted diff = %v", ops)
	}
}

func TestTracker_Persistence(t *testing.T) {
	store := newMemStore()
	doc := testmodels.NewPerson()
	tr := optimistic.NewTracker(doc, testmodels.PersonData(), optimistic.WithStateStore(store, "ada"))

	if err := tr.Restore(); !errors.Is(err, optimistic.ErrStateNotFound) {
		t.Fatalf("Restore() = %v", err)
	}

	tr.SetVersion("v2")
	next := testmodels.PersonData()
	next["name"] = "Grace"
	if err := tr.SetOriginal(next); err != nil {
		t.Fatal(err)
	}

	other := optimistic.NewTracker(doc, nil, optimistic.WithStateStore(store, "ada"))
	if err := other.Restore(); err != nil {
		t.Fatal(err)
	}
	if other.Version() != "v2" || !other.Original().Equal(next) {
		t.Errorf("restored %q %v", other.Version(), other.Original())
	}

	if err := optimistic.NewTracker(doc, nil).Restore(); !errors.Is(err, optimistic.ErrNoStateStore) {
		t.Errorf("Restore without store = %v", err)
	}
}

func TestTracker_RecordCoalesces(t *testing.T) {
	tests := []struct {
		name string
		edit func(doc *model.Model)
		want optimistic.OperationSet
	}{
		{
			name: "edit then edit",
			edit: func(doc *model.Model) {
				doc.ChildModel("car").Set("model", "Fleetwood")
				doc.ChildModel("car").Set("model", "Seville")
			},
			want: optimistic.OperationSet{optimistic.Replace("/car/model", "Seville")},
		},
		{
			name: "edit then revert",
			edit: func(doc *model.Model) {
				doc.Set("name", "Grace")
				doc.Set("name", "Ada")
			},
		},
		{
			name: "add then remove",
			edit: func(doc *model.Model) {
				doc.Set("nickname", "Addy")
				doc.UnsetField("nickname")
			},
		},
		{
			name: "add then edit",
			edit: func(doc *model.Model) {
				doc.Set("nickname", "Addy")
				doc.Set("nickname", "Countess")
			},
			want: optimistic.OperationSet{optimistic.Add("/nickname", "Countess")},
		},
		{
			name: "remove then add",
			edit: func(doc *model.Model) {
				doc.UnsetField("name")
				doc.Set("name", "Grace")
			},
			want: optimistic.OperationSet{optimistic.Replace("/name", "Grace")},
		},
		{
			name: "remove then restore",
			edit: func(doc *model.Model) {
				doc.UnsetField("name")
				doc.Set("name", "Ada")
			},
		},
		{
			name: "edit below a removed child",
			edit: func(doc *model.Model) {
				doc.ChildModel("car").Set("model", "Fleetwood")
				doc.DetachChild("car")
			},
			want: optimistic.OperationSet{optimistic.Remove("/car")},
		},
		{
			name: "member edited twice",
			edit: func(doc *model.Model) {
				shoe := doc.Members("shoes").Member(4.0)
				shoe.Set("color", "Red")
				shoe.Set("color", "Blue")
			},
			want: optimistic.OperationSet{optimistic.Replace("/shoes/0/color", "Blue")},
		},
		{
			name: "member edited then removed",
			edit: func(doc *model.Model) {
				shoes := doc.Members("shoes")
				shoes.Member(4.0).Set("color", "Red")
				shoes.Remove(shoes.Member(4.0))
			},
			want: optimistic.OperationSet{optimistic.Remove("/shoes/0")},
		},
		{
			name: "appends stand alone",
			edit: func(doc *model.Model) {
				doc.Members("shoes").Add(map[string]any{"id": 6.0})
				doc.Members("shoes").Add(map[string]any{"id": 7.0})
			},
			want: optimistic.OperationSet{
				optimistic.Add("/shoes/-", map[string]any{"id": 6.0}),
				optimistic.Add("/shoes/-", map[string]any{"id": 7.0}),
			},
		},
		{
			name: "distinct members removed at the same index",
			edit: func(doc *model.Model) {
				shoes := doc.Members("shoes")
				shoes.Add(testmodels.NewShoe())
				shoes.Remove(shoes.Member(4.0))
				shoes.Remove(shoes.Member(5.0))
			},
			want: optimistic.OperationSet{
				optimistic.Add("/shoes/-", testmodels.NewShoe()),
				optimistic.Remove("/shoes/0"),
				optimistic.Remove("/shoes/0"),
			},
		},
		{
			name: "ignored field",
			edit: func(doc *model.Model) {
				doc.Set("updatedAt", "today")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testmodels.NewPerson()
			tr := optimistic.NewTracker(doc, testmodels.PersonData(), optimistic.WithIgnoredFields("updatedAt"))
			doc.Observe(tr.Record)

			tt.edit(doc)

			log := tr.Log()
			if len(log) != len(tt.want) {
				t.Fatalf("log = %v, want %v", log, tt.want)
			}
			for i := range tt.want {
				if !log[i].Equal(tt.want[i]) {
					t.Errorf("log[%d] = %v, want %v", i, log[i], tt.want[i])
				}
			}
		})
	}
}
