package di

import (
	"testing"
)

type widget struct{}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{"unqualified", KeyOf[*widget](), "*di.widget"},
		{"qualified", KeyOf[*widget](Named("primary")), "*di.widget[primary]"},
		{"empty qualifier", KeyOf[*widget](Named("")), `*di.widget[""]`},
		{"interface", KeyOf[error](), "error"},
		{"builtin", KeyOf[string](Named("dsn")), "string[dsn]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyEquality(t *testing.T) {
	if KeyOf[*widget]() != KeyOf[*widget]() {
		t.Error("expected identical keys to be equal")
	}
	if KeyOf[*widget]() == KeyOf[widget]() {
		t.Error("expected pointer and value types to differ")
	}
	if KeyOf[*widget](Named("a")) == KeyOf[*widget](Named("b")) {
		t.Error("expected different qualifiers to differ")
	}
	if KeyOf[*widget]() == KeyOf[*widget](Named("")) {
		t.Error("expected empty qualifier to differ from no qualifier")
	}

	m := map[Key]int{
		KeyOf[*widget]():           1,
		KeyOf[*widget](Named("")):  2,
		KeyOf[*widget](Named("a")): 3,
	}
	if len(m) != 3 {
		t.Errorf("expected 3 distinct map keys, got %d", len(m))
	}
}

func TestKeyAccessors(t *testing.T) {
	k := KeyOf[*widget](Named("x"))
	if k.Type().String() != "*di.widget" {
		t.Errorf("unexpected type %v", k.Type())
	}
	q, ok := k.Qualifier()
	if !ok || q != "x" {
		t.Errorf("Qualifier() = %q, %v", q, ok)
	}
	if _, ok := KeyOf[*widget]().Qualifier(); ok {
		t.Error("expected unqualified key to report no qualifier")
	}
}

func TestKeyGoString(t *testing.T) {
	if got := KeyOf[int](Named(`a"b`)).GoString(); got != `di.Key{int, "a\"b"}` {
		t.Errorf("GoString() = %s", got)
	}
	if got := (Key{}).GoString(); got != "di.Key{<nil>}" {
		t.Errorf("zero key GoString() = %s", got)
	}
}

func TestLifetime(t *testing.T) {
	tests := []struct {
		in      string
		want    Lifetime
		wantErr bool
	}{
		{"singleton", Singleton, false},
		{"Transient", Transient, false},
		{" factory ", Transient, false},
		{"scoped", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLifetime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLifetime(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLifetime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if Lifetime(7).String() != "lifetime(7)" {
		t.Errorf("unexpected string for unknown lifetime: %s", Lifetime(7))
	}
	text, _ := Transient.MarshalText()
	if string(text) != "transient" {
		t.Errorf("MarshalText() = %s", text)
	}
}

func TestEntryEqual(t *testing.T) {
	a := AsSingleton(func(Resolver) (*widget, error) { return &widget{}, nil })
	b := AsValue(&widget{})
	c := AsFactory(func(Resolver) (*widget, error) { return &widget{}, nil })

	if !a.Equal(b) {
		t.Error("expected entries with same key and lifetime to be equal")
	}
	if a.Equal(c) {
		t.Error("expected different lifetimes to differ")
	}
	if a.Equal(nil) {
		t.Error("expected non-nil entry to differ from nil")
	}
	var none *Entry
	if !none.Equal(nil) {
		t.Error("expected nil entries to be equal")
	}
	if a.Key() != KeyOf[*widget]() || c.Lifetime() != Transient {
		t.Error("unexpected entry accessors")
	}
}
