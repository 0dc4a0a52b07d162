// Copyright (C) 2026 The Chic Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generics

import (
	"reflect"
	"testing"

	"github.com/chic-lang/chic/internal/mir"
	"github.com/chic-lang/chic/internal/ty"
)

func TestSubstituteTyLeafParameter(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	got := substituteTy(ty.Named{Path: "T"}, subst)
	want := ty.Named{Path: "int"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("substituteTy(T) = %#v, want %#v", got, want)
	}
}

func TestSubstituteTyLeavesUnboundNamesAlone(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	got := substituteTy(ty.Named{Path: "U"}, subst)
	want := ty.Named{Path: "U"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("substituteTy(U) = %#v, want the untouched %#v", got, want)
	}
}

func TestSubstituteTyRecursesThroughComposites(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}

	cases := []struct {
		name string
		in   ty.Ty
		want ty.Ty
	}{
		{"Pointer", ty.Pointer{Elem: ty.Named{Path: "T"}, Mutable: true}, ty.Pointer{Elem: ty.Named{Path: "int"}, Mutable: true}},
		{"Ref", ty.Ref{Elem: ty.Named{Path: "T"}, ReadOnly: true}, ty.Ref{Elem: ty.Named{Path: "int"}, ReadOnly: true}},
		{"Rc", ty.Rc{Elem: ty.Named{Path: "T"}}, ty.Rc{Elem: ty.Named{Path: "int"}}},
		{"Arc", ty.Arc{Elem: ty.Named{Path: "T"}}, ty.Arc{Elem: ty.Named{Path: "int"}}},
		{"Nullable", ty.Nullable{Inner: ty.Named{Path: "T"}}, ty.Nullable{Inner: ty.Named{Path: "int"}}},
		{"Vec", ty.Vec{Elem: ty.Named{Path: "T"}}, ty.Vec{Elem: ty.Named{Path: "int"}}},
		{"Array", ty.Array{Elem: ty.Named{Path: "T"}, Rank: 4}, ty.Array{Elem: ty.Named{Path: "int"}, Rank: 4}},
	}
	for _, c := range cases {
		if got := substituteTy(c.in, subst); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: substituteTy(%#v) = %#v, want %#v", c.name, c.in, got, c.want)
		}
	}
}

func TestSubstituteTyNamedWithArgs(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	in := ty.Named{Path: "Box", Args: []ty.Ty{ty.Named{Path: "T"}}}
	got := substituteTy(in, subst)
	want := ty.Named{Path: "Box", Args: []ty.Ty{ty.Named{Path: "int"}}}
	gotNamed, ok := got.(ty.Named)
	if !ok || gotNamed.Path != want.Path || len(gotNamed.Args) != 1 || !reflect.DeepEqual(gotNamed.Args[0], want.Args[0]) {
		t.Errorf("substituteTy(Box<T>) = %#v, want %#v", got, want)
	}
}

func TestSubstituteFnSubstitutesParamsAndReturn(t *testing.T) {
	subst := map[string]ty.Ty{"T": ty.Named{Path: "int"}}
	in := ty.Fn{
		Params: []ty.Ty{ty.Named{Path: "T"}, ty.Named{Path: "bool"}},
		Modes:  []ty.ParamMode{ty.ModeValue, ty.ModeValue},
		Ret:    ty.Named{Path: "T"},
	}
	got := substituteFn(in, subst)
	if !reflect.DeepEqual(got.Params[0], ty.Named{Path: "int"}) {
		t.Errorf("substituteFn param 0 = %#v, want int", got.Params[0])
	}
	if !reflect.DeepEqual(got.Params[1], ty.Named{Path: "bool"}) {
		t.Errorf("substituteFn param 1 = %#v, want bool (unchanged)", got.Params[1])
	}
	if !reflect.DeepEqual(got.Ret, ty.Named{Path: "int"}) {
		t.Errorf("substituteFn return = %#v, want int", got.Ret)
	}
}

func TestPlaceValueTyBareLocal(t *testing.T) {
	body := &mir.Body{
		Locals: []mir.Local{{Name: "x", Ty: ty.Named{Path: "int"}}},
	}
	got, ok := placeValueTy(body, nil, mir.LocalPlace(0))
	if !ok || !reflect.DeepEqual(got, ty.Named{Path: "int"}) {
		t.Errorf("placeValueTy(bare local) = (%#v, %v), want (int, true)", got, ok)
	}
}

func TestPlaceValueTyOutOfRangeLocal(t *testing.T) {
	body := &mir.Body{Locals: []mir.Local{{Name: "x", Ty: ty.Named{Path: "int"}}}}
	if _, ok := placeValueTy(body, nil, mir.LocalPlace(5)); ok {
		t.Error("placeValueTy reported a value for an out-of-range local id")
	}
}

func TestPlaceValueTyDerefPointer(t *testing.T) {
	body := &mir.Body{
		Locals: []mir.Local{{Name: "p", Ty: ty.Pointer{Elem: ty.Named{Path: "int"}}}},
	}
	got, ok := placeValueTy(body, nil, mir.LocalPlace(0).Deref())
	if !ok || !reflect.DeepEqual(got, ty.Named{Path: "int"}) {
		t.Errorf("placeValueTy(*p) = (%#v, %v), want (int, true)", got, ok)
	}
}
