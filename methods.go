package authlink

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// AttributeSpec describes one provider specific attribute an auth method
// stores in Auth.Attributes.
type AttributeSpec struct {
	Name     string
	Required bool
	Rules    []validation.Rule
}

// AuthMethod is a capability provider, e.g. a local or a social login
// method, registered once at startup.
type AuthMethod interface {
	Name() string
	AttributeContribution() []AttributeSpec
}

type providerMethod struct {
	name  string
	attrs []AttributeSpec
}

func (m providerMethod) Name() string                          { return m.name }
func (m providerMethod) AttributeContribution() []AttributeSpec { return m.attrs }

// NewProviderMethod builds an AuthMethod for provider contributing attrs.
func NewProviderMethod(provider string, attrs ...AttributeSpec) AuthMethod {
	return providerMethod{name: provider, attrs: attrs}
}

type attributeEntry struct {
	spec   AttributeSpec
	method string
}

// Schema is the static Auth attribute schema produced by the registered
// methods. It is immutable after NewSchema and safe for concurrent use.
type Schema struct {
	methods    []string
	attributes map[string]attributeEntry
}

// NewSchema registers methods. Two methods contributing the same attribute,
// or one method registered twice, is an error.
func NewSchema(methods ...AuthMethod) (*Schema, error) {
	s := &Schema{attributes: map[string]attributeEntry{}}
	seen := map[string]bool{}

	for _, m := range methods {
		if m == nil {
			continue
		}
		name := m.Name()
		if name == "" {
			return nil, goerrors.New("auth method name is required", goerrors.CategoryBadInput)
		}
		if seen[name] {
			return nil, goerrors.New(fmt.Sprintf("auth method %q registered twice", name), goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict)
		}
		seen[name] = true
		s.methods = append(s.methods, name)

		for _, spec := range m.AttributeContribution() {
			if spec.Name == "" {
				return nil, goerrors.New(fmt.Sprintf("auth method %q contributes an unnamed attribute", name), goerrors.CategoryBadInput)
			}
			if prev, ok := s.attributes[spec.Name]; ok {
				return nil, goerrors.New(
					fmt.Sprintf("attribute %q contributed by %q and %q", spec.Name, prev.method, name),
					goerrors.CategoryConflict,
				).WithCode(goerrors.CodeConflict)
			}
			s.attributes[spec.Name] = attributeEntry{spec: spec, method: name}
		}
	}

	return s, nil
}

// MustSchema is NewSchema that panics on error.
func MustSchema(methods ...AuthMethod) *Schema {
	s, err := NewSchema(methods...)
	if err != nil {
		panic(err)
	}
	return s
}

// Methods lists the registered method names in registration order.
func (s *Schema) Methods() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.methods...)
}

// Attributes lists the contributed attribute names, sorted.
func (s *Schema) Attributes() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.attributes))
	for name := range s.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the base Auth fields and the provider attributes. A nil
// schema, or one without registered methods, accepts any attribute key.
func (s *Schema) Validate(a *Auth) error {
	if a == nil {
		return newError(ErrValidation, nil, map[string]any{"auth": "is required"})
	}

	errs := validation.Errors{}
	if err := validation.ValidateStruct(a,
		validation.Field(&a.Provider, validation.Required),
		validation.Field(&a.Email, is.Email),
		validation.Field(&a.Username, validation.Length(4, 255)),
	); err != nil {
		if fieldErrs, ok := err.(validation.Errors); ok {
			for k, v := range fieldErrs {
				errs[k] = v
			}
		} else {
			return newError(ErrValidation, err, nil)
		}
	}

	if s != nil && len(s.methods) > 0 {
		for key, value := range a.Attributes {
			entry, ok := s.attributes[key]
			if !ok {
				errs[key] = fmt.Errorf("unknown attribute")
				continue
			}
			if err := validation.Validate(value, entry.spec.Rules...); err != nil {
				errs[key] = err
			}
		}
		for key, entry := range s.attributes {
			if !entry.spec.Required || entry.method != a.Provider {
				continue
			}
			if _, ok := a.Attributes[key]; !ok {
				errs[key] = fmt.Errorf("cannot be blank")
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}

	fields := make(map[string]any, len(errs))
	for k, v := range errs {
		fields[k] = v.Error()
	}
	return newError(ErrValidation, errs, map[string]any{"fields": fields})
}
