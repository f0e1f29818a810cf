package veil

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register the veil tag with sentinel.
	sentinel.Tag(tagKey)
}

// tagKey marks struct fields for obfuscation.
const tagKey = "veil"

// TransformID is the only transform the veil tag currently understands:
// the field is an identifier to be encoded as an opaque token.
const TransformID = "id"

// validTransforms contains all valid veil tag values.
var validTransforms = map[string]bool{
	TransformID: true,
}

// Processor transforms marked numeric fields of T at the serialization
// boundary: Marshal replaces them with opaque tokens before handing the
// value to the host codec, Unmarshal recovers the original integers.
//
// Field classification runs once, when the processor is built; a field
// with an unsupported type fails NewProcessor, never a later call.
// Processors hold no per-call state and are safe for concurrent use.
type Processor[T any] struct {
	codec    Codec
	obf      *Obfuscator
	plan     *structPlan
	typeName string
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*processorConfig)

type processorConfig struct {
	obf *Obfuscator
}

// WithObfuscator injects an explicit Obfuscator instead of the
// process-wide default.
func WithObfuscator(o *Obfuscator) ProcessorOption {
	return func(c *processorConfig) { c.obf = o }
}

// NewProcessor creates a Processor for struct type T.
//
// The type's veil-tagged fields are classified and a wire
// representation is precomputed. Classification failures (a marked
// field outside the supported numeric shapes, an unknown tag value)
// are returned here.
func NewProcessor[T any](codec Codec, opts ...ProcessorOption) (*Processor[T], error) {
	var cfg processorConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("veil: processor requires a struct type, got %s", rt)
	}

	spec := sentinel.Scan[T]()
	plan, err := getOrBuildPlan(rt, spec)
	if err != nil {
		return nil, err
	}

	obf := cfg.obf
	if obf == nil {
		obf = Default()
	}

	p := &Processor[T]{
		codec:    codec,
		obf:      obf,
		plan:     plan,
		typeName: spec.TypeName,
	}

	emitProcessorCreated(context.Background(), codec.ContentType(), spec.TypeName, plan.tokens)
	return p, nil
}

// Marshal encodes marked fields of obj into tokens and hands the
// result to the host codec. A nil obj marshals as the codec's null.
func (p *Processor[T]) Marshal(ctx context.Context, obj *T) ([]byte, error) {
	start := time.Now()
	emitMarshalStart(ctx, p.codec.ContentType(), p.typeName)

	var retErr error
	var retData []byte
	defer func() {
		emitMarshalComplete(ctx, p.codec.ContentType(), p.typeName,
			len(retData), time.Since(start), p.plan.tokens, retErr)
	}()

	if obj == nil {
		if retData, retErr = p.codec.Marshal(nil); retErr != nil {
			retErr = newCodecError(ErrMarshal, retErr)
			return nil, retErr
		}
		return retData, nil
	}

	var v any = obj
	if p.plan.tokens > 0 {
		shadow := p.encodeStruct(p.plan, reflect.ValueOf(obj).Elem())
		v = shadow.Addr().Interface()
	}

	if retData, retErr = p.codec.Marshal(v); retErr != nil {
		retErr = newCodecError(ErrMarshal, retErr)
		return nil, retErr
	}
	return retData, nil
}

// Unmarshal decodes data with the host codec and recovers the original
// integers from marked fields. Token failures surface as a *FieldError
// wrapping *DecodeError or *ArityError; decode failure on any element
// of a sequence fails the whole field.
func (p *Processor[T]) Unmarshal(ctx context.Context, data []byte) (*T, error) {
	start := time.Now()
	emitUnmarshalStart(ctx, p.codec.ContentType(), p.typeName)

	var retErr error
	defer func() {
		emitUnmarshalComplete(ctx, p.codec.ContentType(), p.typeName,
			len(data), time.Since(start), p.plan.tokens, retErr)
	}()

	var obj T
	if p.plan.tokens == 0 {
		if err := p.codec.Unmarshal(data, &obj); err != nil {
			retErr = newCodecError(ErrUnmarshal, err)
			return nil, retErr
		}
		return &obj, nil
	}

	shadow := reflect.New(p.plan.shadow)
	if err := p.codec.Unmarshal(data, shadow.Interface()); err != nil {
		retErr = newCodecError(ErrUnmarshal, err)
		return nil, retErr
	}

	if err := p.decodeStruct(p.plan, shadow.Elem(), reflect.ValueOf(&obj).Elem()); err != nil {
		retErr = err
		return nil, retErr
	}
	return &obj, nil
}

// fieldMode describes how a field moves between the original struct
// and its wire representation.
type fieldMode int

const (
	modeCopy        fieldMode = iota // forwarded unchanged
	modeToken                        // marked numeric field, encoded as token(s)
	modeNested                       // struct (or *struct) containing marked fields
	modeNestedSlice                  // []struct (or []*struct) containing marked fields
)

// fieldPlan describes how to transform a single field.
type fieldPlan struct {
	index       int    // field index in the original struct
	shadowIndex int    // field index in the wire struct
	name        string // qualified name for error messages
	mode        fieldMode
	category    FieldCategory // for modeToken
	nested      *structPlan   // for modeNested/modeNestedSlice
	ptr         bool          // nested value sits behind a pointer
}

// structPlan is the cached, immutable transformation plan for one
// struct type: its field plans plus the generated wire struct type in
// which marked numeric fields become string tokens.
type structPlan struct {
	typ    reflect.Type
	shadow reflect.Type
	fields []fieldPlan
	tokens int // marked fields in this subtree
}

var (
	planCache   = make(map[reflect.Type]*structPlan)
	planCacheMu sync.RWMutex
)

// getOrBuildPlan returns the cached plan for rt or builds one from its
// scanned metadata.
func getOrBuildPlan(rt reflect.Type, spec sentinel.Metadata) (*structPlan, error) {
	planCacheMu.RLock()
	if plan, ok := planCache[rt]; ok {
		planCacheMu.RUnlock()
		return plan, nil
	}
	planCacheMu.RUnlock()

	planCacheMu.Lock()
	defer planCacheMu.Unlock()

	if plan, ok := planCache[rt]; ok {
		return plan, nil
	}

	plan, err := buildStructPlan(spec, rt, "", make(map[reflect.Type]bool))
	if err != nil {
		return nil, err
	}

	planCache[rt] = plan
	return plan, nil
}

var (
	stringType      = reflect.TypeOf("")
	stringSliceType = reflect.TypeOf([]string(nil))
)

// tokenType returns the wire type a marked field is rewritten to.
func tokenType(cat FieldCategory) reflect.Type {
	switch cat {
	case Numeric:
		return stringType
	case SequenceOfNumeric:
		return stringSliceType
	case OptionalNumeric:
		return reflect.PointerTo(stringType)
	default: // OptionalSequenceOfNumeric
		return reflect.PointerTo(stringSliceType)
	}
}

// buildStructPlan classifies spec's fields and constructs the wire
// struct type for rt. Nested structs, pointers to structs, and slices
// of structs are scanned and planned recursively; subtrees without
// marked fields keep their original type. visiting breaks type
// recursion: a type reached through itself is treated as passthrough.
func buildStructPlan(spec sentinel.Metadata, rt reflect.Type, prefix string, visiting map[reflect.Type]bool) (*structPlan, error) {
	if visiting[rt] {
		return nil, nil
	}
	visiting[rt] = true
	defer delete(visiting, rt)

	plan := &structPlan{typ: rt}
	shadowFields := make([]reflect.StructField, 0, len(spec.Fields))

	for _, field := range spec.Fields {
		// The scanned metadata only lists exported fields; the original
		// StructField still supplies the verbatim tag for the shadow.
		sf := rt.FieldByIndex(field.Index)

		fp := fieldPlan{
			index:       field.Index[0],
			shadowIndex: len(shadowFields),
			name:        qualifyField(prefix, field.Name),
			mode:        modeCopy,
		}
		shadowType := field.ReflectType

		if val, tagged := field.Tags[tagKey]; tagged {
			if !validTransforms[val] {
				return nil, fmt.Errorf("invalid veil transform %q for field %s", val, fp.name)
			}
			cat, err := Classify(field.ReflectType)
			if err != nil {
				var ce *ClassificationError
				if errors.As(err, &ce) {
					ce.Field = fp.name
				}
				return nil, err
			}
			fp.mode = modeToken
			fp.category = cat
			plan.tokens++
			shadowType = tokenType(cat)
		} else {
			nestedType := field.ReflectType
			switch field.Kind {
			case sentinel.KindPointer:
				nestedType = field.ReflectType.Elem()
				fp.ptr = true
			case sentinel.KindSlice:
				nestedType = field.ReflectType.Elem()
				if nestedType.Kind() == reflect.Pointer {
					nestedType = nestedType.Elem()
					fp.ptr = true
				}
			}

			if nestedType.Kind() == reflect.Struct {
				sub, err := buildStructPlan(scanType(nestedType), nestedType, fp.name, visiting)
				if err != nil {
					return nil, err
				}
				if sub != nil && sub.tokens > 0 {
					fp.nested = sub
					plan.tokens += sub.tokens
					switch field.ReflectType.Kind() {
					case reflect.Struct:
						fp.mode = modeNested
						shadowType = sub.shadow
					case reflect.Pointer:
						fp.mode = modeNested
						shadowType = reflect.PointerTo(sub.shadow)
					case reflect.Slice:
						fp.mode = modeNestedSlice
						if fp.ptr {
							shadowType = reflect.SliceOf(reflect.PointerTo(sub.shadow))
						} else {
							shadowType = reflect.SliceOf(sub.shadow)
						}
					}
				}
			}
			if fp.mode == modeCopy {
				fp.ptr = false
			}
		}

		shadowFields = append(shadowFields, reflect.StructField{
			Name:      field.Name,
			Type:      shadowType,
			Tag:       sf.Tag,
			Anonymous: sf.Anonymous,
		})
		plan.fields = append(plan.fields, fp)
	}

	if plan.tokens == 0 {
		// Nothing to transform; marshal the original type directly.
		plan.shadow = rt
		return plan, nil
	}

	shadow, err := structOf(rt.String(), shadowFields)
	if err != nil {
		return nil, err
	}
	plan.shadow = shadow
	return plan, nil
}

// scanType returns metadata for a nested struct type, from sentinel's
// registry when the type has been scanned before, otherwise built
// directly from reflection.
func scanType(rt reflect.Type) sentinel.Metadata {
	if spec, ok := sentinel.Lookup(rt.String()); ok {
		return spec
	}

	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        parseVeilTags(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Pointer:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return spec
}

// parseVeilTags extracts the veil tag from a struct tag.
func parseVeilTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	if val, ok := tag.Lookup(tagKey); ok {
		tags[tagKey] = val
	}
	return tags
}

// structOf wraps reflect.StructOf, converting its panics (embedded
// fields with methods, unrepresentable shapes) into classification
// errors.
func structOf(typeName string, fields []reflect.StructField) (rt reflect.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: cannot build wire struct for %s: %v", ErrUnsupportedType, typeName, r)
		}
	}()
	return reflect.StructOf(fields), nil
}

func qualifyField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// encodeStruct converts an original struct value into its wire
// representation, encoding marked fields. Encoding is total: it
// cannot fail for any in-range value.
func (p *Processor[T]) encodeStruct(plan *structPlan, src reflect.Value) reflect.Value {
	dst := reflect.New(plan.shadow).Elem()

	for _, f := range plan.fields {
		sv := src.Field(f.index)
		dv := dst.Field(f.shadowIndex)

		switch f.mode {
		case modeCopy:
			dv.Set(sv)

		case modeToken:
			p.encodeField(f, sv, dv)

		case modeNested:
			if f.ptr {
				if sv.IsNil() {
					continue
				}
				pv := reflect.New(f.nested.shadow)
				pv.Elem().Set(p.encodeStruct(f.nested, sv.Elem()))
				dv.Set(pv)
				continue
			}
			dv.Set(p.encodeStruct(f.nested, sv))

		case modeNestedSlice:
			if sv.IsNil() {
				continue
			}
			out := reflect.MakeSlice(dv.Type(), sv.Len(), sv.Len())
			for i := 0; i < sv.Len(); i++ {
				ev := sv.Index(i)
				if f.ptr {
					if ev.IsNil() {
						continue
					}
					pv := reflect.New(f.nested.shadow)
					pv.Elem().Set(p.encodeStruct(f.nested, ev.Elem()))
					out.Index(i).Set(pv)
					continue
				}
				out.Index(i).Set(p.encodeStruct(f.nested, ev))
			}
			dv.Set(out)
		}
	}

	return dst
}

// encodeField encodes one marked field into its token form. Absence
// (nil pointer, nil slice) maps to absence without invoking the codec.
func (p *Processor[T]) encodeField(f fieldPlan, sv, dv reflect.Value) {
	switch f.category {
	case Numeric:
		dv.SetString(p.obf.EncodeSingle(sv.Uint()))

	case SequenceOfNumeric:
		if sv.IsNil() {
			return
		}
		tokens := make([]string, sv.Len())
		for i := range tokens {
			tokens[i] = p.obf.EncodeSingle(sv.Index(i).Uint())
		}
		dv.Set(reflect.ValueOf(tokens))

	case OptionalNumeric:
		if sv.IsNil() {
			return
		}
		token := p.obf.EncodeSingle(sv.Elem().Uint())
		dv.Set(reflect.ValueOf(&token))

	case OptionalSequenceOfNumeric:
		if sv.IsNil() {
			return
		}
		seq := sv.Elem()
		tokens := make([]string, seq.Len())
		for i := range tokens {
			tokens[i] = p.obf.EncodeSingle(seq.Index(i).Uint())
		}
		dv.Set(reflect.ValueOf(&tokens))
	}
}

// decodeStruct converts a wire value back into the original struct,
// decoding marked fields.
func (p *Processor[T]) decodeStruct(plan *structPlan, src, dst reflect.Value) error {
	for _, f := range plan.fields {
		sv := src.Field(f.shadowIndex)
		dv := dst.Field(f.index)

		switch f.mode {
		case modeCopy:
			dv.Set(sv)

		case modeToken:
			if err := p.decodeField(f, sv, dv); err != nil {
				return err
			}

		case modeNested:
			if f.ptr {
				if sv.IsNil() {
					continue
				}
				pv := reflect.New(f.nested.typ)
				if err := p.decodeStruct(f.nested, sv.Elem(), pv.Elem()); err != nil {
					return err
				}
				dv.Set(pv)
				continue
			}
			if err := p.decodeStruct(f.nested, sv, dv); err != nil {
				return err
			}

		case modeNestedSlice:
			if sv.IsNil() {
				continue
			}
			out := reflect.MakeSlice(dv.Type(), sv.Len(), sv.Len())
			for i := 0; i < sv.Len(); i++ {
				ev := sv.Index(i)
				if f.ptr {
					if ev.IsNil() {
						continue
					}
					pv := reflect.New(f.nested.typ)
					if err := p.decodeStruct(f.nested, ev.Elem(), pv.Elem()); err != nil {
						return err
					}
					out.Index(i).Set(pv)
					continue
				}
				if err := p.decodeStruct(f.nested, ev, out.Index(i)); err != nil {
					return err
				}
			}
			dv.Set(out)
		}
	}

	return nil
}

// decodeField decodes one marked field from its token form, checking
// that the decoded value fits the destination width.
func (p *Processor[T]) decodeField(f fieldPlan, sv, dv reflect.Value) error {
	switch f.category {
	case Numeric:
		return p.decodeUint(f.name, sv.String(), dv)

	case SequenceOfNumeric:
		if sv.IsNil() {
			return nil
		}
		out := reflect.MakeSlice(dv.Type(), sv.Len(), sv.Len())
		for i := 0; i < sv.Len(); i++ {
			name := fmt.Sprintf("%s[%d]", f.name, i)
			if err := p.decodeUint(name, sv.Index(i).String(), out.Index(i)); err != nil {
				return err
			}
		}
		dv.Set(out)
		return nil

	case OptionalNumeric:
		if sv.IsNil() {
			return nil
		}
		pv := reflect.New(dv.Type().Elem())
		if err := p.decodeUint(f.name, sv.Elem().String(), pv.Elem()); err != nil {
			return err
		}
		dv.Set(pv)
		return nil

	case OptionalSequenceOfNumeric:
		if sv.IsNil() {
			return nil
		}
		seq := sv.Elem()
		out := reflect.MakeSlice(dv.Type().Elem(), seq.Len(), seq.Len())
		for i := 0; i < seq.Len(); i++ {
			name := fmt.Sprintf("%s[%d]", f.name, i)
			if err := p.decodeUint(name, seq.Index(i).String(), out.Index(i)); err != nil {
				return err
			}
		}
		pv := reflect.New(dv.Type().Elem())
		pv.Elem().Set(out)
		dv.Set(pv)
		return nil
	}
	return nil
}

// decodeUint decodes a single token into an unsigned integer slot.
// Values that overflow the destination width are rejected rather than
// truncated.
func (p *Processor[T]) decodeUint(field, token string, dv reflect.Value) error {
	n, err := p.obf.DecodeSingle(token)
	if err != nil {
		return newFieldError(field, err)
	}
	if dv.OverflowUint(n) {
		return newFieldError(field, newDecodeError(token,
			fmt.Sprintf("value %d overflows %s", n, dv.Type())))
	}
	dv.SetUint(n)
	return nil
}
