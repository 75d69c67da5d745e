package typesupport

import (
	"fmt"
	"reflect"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/instancehandle"
	"rtpsgo/rtps/types"
)

// StructTypeSupport implements TypeSupport by reflecting over a struct's
// exported fields, handling the scalar kinds and string/[]byte fields a
// topic type built from Go primitives needs. Fields tagged `rtps:"key"`
// form the instance key, in declaration order.
//
// This stands in for the IDL-to-native code generator spec.md §1 excludes:
// real deployments would generate a TypeSupport per topic type instead of
// reflecting at runtime.
type StructTypeSupport struct {
	name    string
	sample  reflect.Type
	keyIdx  []int
}

// NewStructTypeSupport builds a TypeSupport for the struct type of zero
// (a pointer to a zero-valued instance, e.g. (*ShapeType)(nil)).
func NewStructTypeSupport(typeName string, zero any) *StructTypeSupport {
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic("typesupport: NewStructTypeSupport requires a struct or pointer to struct")
	}
	ts := &StructTypeSupport{name: typeName, sample: t}
	for i := 0; i < t.NumField(); i++ {
		if tag, ok := t.Field(i).Tag.Lookup("rtps"); ok && tag == "key" {
			ts.keyIdx = append(ts.keyIdx, i)
		}
	}
	return ts
}

func (ts *StructTypeSupport) TypeName() string { return ts.name }

func (ts *StructTypeSupport) IsKeyed() bool { return len(ts.keyIdx) > 0 }

func (ts *StructTypeSupport) Serialize(sample any) ([]byte, error) {
	w := cdr.NewWriter(cdr.BigEndian)
	w.WriteEncapsulationHeader(cdr.CDR_BE)
	v := reflect.Indirect(reflect.ValueOf(sample))
	if err := writeStruct(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (ts *StructTypeSupport) Deserialize(payload []byte) (any, error) {
	r, _, err := cdr.NewReaderFromEncapsulation(payload)
	if err != nil {
		return nil, err
	}
	out := reflect.New(ts.sample)
	if err := readStruct(r, out.Elem()); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func (ts *StructTypeSupport) SerializeKey(sample any) ([]byte, error) {
	w := cdr.NewWriter(cdr.BigEndian)
	v := reflect.Indirect(reflect.ValueOf(sample))
	for _, idx := range ts.keyIdx {
		if err := writeField(w, v.Field(idx)); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func (ts *StructTypeSupport) InstanceHandle(sample any) types.InstanceHandle {
	key, err := ts.SerializeKey(sample)
	if err != nil || len(ts.keyIdx) == 0 {
		return types.InstanceHandleNil
	}
	return instancehandle.FromKeyBytes(key)
}

func writeStruct(w *cdr.Writer, v reflect.Value) error {
	for i := 0; i < v.NumField(); i++ {
		if err := writeField(w, v.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func writeField(w *cdr.Writer, f reflect.Value) error {
	switch f.Kind() {
	case reflect.Bool:
		if f.Bool() {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case reflect.Int8:
		w.WriteByte(byte(f.Int()))
	case reflect.Int16:
		w.WriteInt16(int16(f.Int()))
	case reflect.Int32:
		w.WriteInt32(int32(f.Int()))
	case reflect.Int64:
		w.WriteInt64(f.Int())
	case reflect.Uint8:
		w.WriteByte(byte(f.Uint()))
	case reflect.Uint16:
		w.WriteUint16(uint16(f.Uint()))
	case reflect.Uint32:
		w.WriteUint32(uint32(f.Uint()))
	case reflect.Uint64:
		w.WriteUint64(f.Uint())
	case reflect.Float32:
		w.WriteFloat32(float32(f.Float()))
	case reflect.Float64:
		w.WriteFloat64(f.Float())
	case reflect.String:
		w.WriteString(f.String())
	case reflect.Slice:
		if f.Type().Elem().Kind() == reflect.Uint8 {
			w.WriteSequenceLength(f.Len())
			w.WriteBytes(f.Bytes())
			return nil
		}
		return fmt.Errorf("typesupport: unsupported slice element kind %s", f.Type().Elem())
	default:
		return fmt.Errorf("typesupport: unsupported field kind %s", f.Kind())
	}
	return nil
}

func readStruct(r *cdr.Reader, v reflect.Value) error {
	for i := 0; i < v.NumField(); i++ {
		if err := readField(r, v.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func readField(r *cdr.Reader, f reflect.Value) error {
	switch f.Kind() {
	case reflect.Bool:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		f.SetBool(b != 0)
	case reflect.Int8:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		f.SetInt(int64(int8(b)))
	case reflect.Int16:
		n, err := r.ReadInt16()
		if err != nil {
			return err
		}
		f.SetInt(int64(n))
	case reflect.Int32:
		n, err := r.ReadInt32()
		if err != nil {
			return err
		}
		f.SetInt(int64(n))
	case reflect.Int64:
		n, err := r.ReadInt64()
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Uint8:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		f.SetUint(uint64(b))
	case reflect.Uint16:
		n, err := r.ReadUint16()
		if err != nil {
			return err
		}
		f.SetUint(uint64(n))
	case reflect.Uint32:
		n, err := r.ReadUint32()
		if err != nil {
			return err
		}
		f.SetUint(uint64(n))
	case reflect.Uint64:
		n, err := r.ReadUint64()
		if err != nil {
			return err
		}
		f.SetUint(n)
	case reflect.Float32:
		n, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		f.SetFloat(float64(n))
	case reflect.Float64:
		n, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case reflect.String:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		f.SetString(s)
	case reflect.Slice:
		if f.Type().Elem().Kind() == reflect.Uint8 {
			n, err := r.ReadSequenceLength()
			if err != nil {
				return err
			}
			b, err := r.ReadBytes(n)
			if err != nil {
				return err
			}
			f.SetBytes(append([]byte(nil), b...))
			return nil
		}
		return fmt.Errorf("typesupport: unsupported slice element kind %s", f.Type().Elem())
	default:
		return fmt.Errorf("typesupport: unsupported field kind %s", f.Kind())
	}
	return nil
}
