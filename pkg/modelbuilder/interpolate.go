package modelbuilder

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/ritzau/pomreactor/pkg/model"
)

// skipInterpolation lists model fields that keep their raw values
var skipInterpolation = map[string]bool{
	"XMLName":  true,
	"Parent":   true,
	"PomFile":  true,
	"Profiles": true,
}

// interpolator expands ${...} expressions in a model
type interpolator struct {
	model    *model.Model
	basedir  string
	system   map[string]string
	user     map[string]string
	problems *model.Problems
	resolved map[string]string
	reported map[string]bool
}

func newInterpolator(m *model.Model, basedir string, req *Request, problems *model.Problems) *interpolator {
	return &interpolator{
		model:    m,
		basedir:  basedir,
		system:   req.SystemProperties,
		user:     req.UserProperties,
		problems: problems,
		resolved: make(map[string]string),
		reported: make(map[string]bool),
	}
}

// interpolate rewrites every string of the model in place
func (in *interpolator) interpolate() {
	in.walk(reflect.ValueOf(in.model).Elem())
}

func (in *interpolator) walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			in.walk(v.Elem())
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || skipInterpolation[f.Name] {
				continue
			}
			in.walk(v.Field(i))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			in.walk(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.String {
			return
		}
		for _, k := range v.MapKeys() {
			s := v.MapIndex(k).String()
			if strings.Contains(s, "${") {
				v.SetMapIndex(k, reflect.ValueOf(in.expand(s, nil)).Convert(v.Type().Elem()))
			}
		}
	case reflect.String:
		if v.CanSet() && strings.Contains(v.String(), "${") {
			v.SetString(in.expand(v.String(), nil))
		}
	}
}

// expand replaces every resolvable expression in s. Unresolvable expressions
// are left as written.
func (in *interpolator) expand(s string, stack []string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start

		b.WriteString(s[:start])
		expr := s[start+2 : end]
		if value, ok := in.resolve(expr, stack); ok {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

func (in *interpolator) resolve(expr string, stack []string) (string, bool) {
	if v, ok := in.resolved[expr]; ok {
		return v, true
	}
	for _, e := range stack {
		if e == expr {
			in.reportCycle(append(stack, expr))
			return "", false
		}
	}

	raw, ok := in.lookup(expr)
	if !ok {
		return "", false
	}
	value := raw
	if strings.Contains(raw, "${") {
		value = in.expand(raw, append(stack, expr))
	}
	if !strings.Contains(value, "${") {
		in.resolved[expr] = value
	}
	return value, true
}

func (in *interpolator) reportCycle(cycle []string) {
	members := slices.Clone(cycle[:len(cycle)-1])
	slices.Sort(members)
	key := strings.Join(members, ",")
	if in.reported[key] {
		return
	}
	in.reported[key] = true
	in.problems.Add(model.Problem{
		Message: fmt.Sprintf("Detected the following recursive expression cycle in '%s': [%s]",
			cycle[0], strings.Join(cycle[1:], ", ")),
		Severity: model.SeverityError,
		Version:  model.VersionBase,
		Source:   in.model.PomFile,
	})
}

// lookup finds the raw value of an expression: project fields first, then
// user properties, model properties and system properties
func (in *interpolator) lookup(expr string) (string, bool) {
	switch expr {
	case "basedir", "project.basedir", "pom.basedir":
		return in.basedir, in.basedir != ""
	case "project.basedir.uri":
		return "file://" + in.basedir, in.basedir != ""
	}

	for _, prefix := range []string{"project.", "pom."} {
		if path, ok := strings.CutPrefix(expr, prefix); ok {
			if v, ok := fieldByPath(reflect.ValueOf(in.model), strings.Split(path, ".")); ok {
				return v, true
			}
		}
	}
	if name, ok := strings.CutPrefix(expr, "env."); ok {
		return os.LookupEnv(name)
	}
	if v, ok := in.user[expr]; ok {
		return v, true
	}
	if v, ok := in.model.Properties[expr]; ok {
		return v, true
	}
	if v, ok := in.system[expr]; ok {
		return v, true
	}
	return "", false
}

// fieldByPath walks struct fields by their XML element names, so
// "build.directory" reads Build.Directory
func fieldByPath(v reflect.Value, path []string) (string, bool) {
	for _, name := range path {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return "", false
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return "", false
		}
		field, ok := fieldByXMLName(v, name)
		if !ok {
			return "", false
		}
		v = field
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}

func fieldByXMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("xml"), ",")
		tag, _, _ = strings.Cut(tag, ">")
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
