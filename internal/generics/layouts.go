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
	"github.com/chic-lang/chic/internal/ty"
)

// instantiateLayouts produces a struct/class/enum layout for every
// registered generic type definition whose parameter count equals
// len(typeArgs) and whose type parameters are all bound in subst
// (spec.md 4.6: "Specialized type layouts... generates per-instantiation
// struct/class layouts by substituting the base layout's field types,
// clearing offsets..., and registering type flags"), registering it under
// MangleName(baseName, typeArgs) unless a layout of that name already
// exists. Definitions failing either test are skipped, so a specialization
// whose parameter names match no generic type definition instantiates
// nothing here.
func (s *Specializer) instantiateLayouts(typeArgs []ty.Ty, subst map[string]ty.Ty) {
	for baseName, def := range allGenericDefNames(s.Layouts) {
		params := genericDefTypeParams(def)
		if len(params) == 0 || len(params) != len(typeArgs) {
			continue
		}
		want := true
		for _, p := range params {
			if _, ok := subst[p]; !ok {
				want = false
				break
			}
		}
		if !want {
			continue
		}
		mangled := MangleName(baseName, typeArgs)
		if _, exists := s.Layouts.LayoutForName(mangled); exists {
			continue
		}
		s.Layouts.Register(mangled, instantiateLayout(def, mangled, subst))
	}
}

func instantiateLayout(def *ty.Layout, mangledName string, subst map[string]ty.Ty) *ty.Layout {
	switch {
	case def.Struct != nil:
		sl := *def.Struct
		sl.Name = mangledName
		sl.TypeParams = nil
		sl.Fields = make([]ty.Field, len(def.Struct.Fields))
		for i, f := range def.Struct.Fields {
			f.Ty = substituteTy(f.Ty, subst)
			f.Offset = nil
			sl.Fields[i] = f
		}
		sl.Size, sl.Align = 0, 0
		sl.AutoTraits = nil
		return &ty.Layout{Struct: &sl}
	case def.Enum != nil:
		el := *def.Enum
		el.Name = mangledName
		el.TypeParams = nil
		el.Variants = make([]ty.EnumVariant, len(def.Enum.Variants))
		for i, v := range def.Enum.Variants {
			fields := make([]ty.Field, len(v.Fields))
			for j, f := range v.Fields {
				f.Ty = substituteTy(f.Ty, subst)
				f.Offset = nil
				fields[j] = f
			}
			v.Fields = fields
			el.Variants[i] = v
		}
		el.Size, el.Align = 0, 0
		return &ty.Layout{Enum: &el}
	default:
		return def
	}
}

func genericDefTypeParams(def *ty.Layout) []string {
	switch {
	case def.Struct != nil:
		return def.Struct.TypeParams
	case def.Enum != nil:
		return def.Enum.TypeParams
	default:
		return nil
	}
}

// allGenericDefNames exposes the layout table's generic definitions for
// iteration; TypeLayoutTable keeps that map unexported, so this walks its
// public surface (GenericDefNames, then GenericDef for each name) instead of
// reflecting into the table directly.
func allGenericDefNames(layouts *ty.TypeLayoutTable) map[string]*ty.Layout {
	out := make(map[string]*ty.Layout)
	for _, name := range layouts.GenericDefNames() {
		if def, ok := layouts.GenericDef(name); ok {
			out[name] = def
		}
	}
	return out
}
