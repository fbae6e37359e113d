package core

import (
	"fmt"
	"reflect"
	"time"
)

// ParamBinder is the open extension point of the parameter marshaller.
// A value implementing it binds its own members, in order, the way a row
// struct would (one bind call per column).
type ParamBinder interface {
	BindParam(st *Statement) error
}

// ResultBinder is the open extension point of the result marshaller.
type ResultBinder interface {
	BindResult(st *Statement) error
}

// Static is a parameter-only text value. The driver receives the caller's
// string without a copy; the caller keeps it alive through Execute.
// Static cannot be bound as a result.
type Static string

// Blob is a variable-length binary payload. With Static set the driver may
// reference Data directly and the caller must keep it alive through Execute;
// otherwise the bytes are copied at bind time. Slot, when non-zero, rebinds
// the payload to that explicit parameter slot instead of the next one.
type Blob struct {
	Data   []byte
	Static bool
	Slot   int
}

// BindParam converts v into the next parameter slot of the statement.
// Supported: bool, every fixed-width integer, float32/64, string, []byte,
// time.Time (values or pointers), Static, Blob, any ParamBinder, and slices
// of any supported type, bound element-by-element in order.
func (st *Statement) BindParam(v any) error {
	switch x := v.(type) {
	case bool:
		return st.putParam(x)
	case *bool:
		return st.putParam(*x)
	case int:
		return st.putParam(int64(x))
	case *int:
		return st.putParam(int64(*x))
	case int8:
		return st.putParam(int64(x))
	case *int8:
		return st.putParam(int64(*x))
	case int16:
		return st.putParam(int64(x))
	case *int16:
		return st.putParam(int64(*x))
	case int32:
		return st.putParam(int64(x))
	case *int32:
		return st.putParam(int64(*x))
	case int64:
		return st.putParam(x)
	case *int64:
		return st.putParam(*x)
	case uint:
		return st.putParam(uint64(x))
	case *uint:
		return st.putParam(uint64(*x))
	case uint8:
		return st.putParam(uint64(x))
	case *uint8:
		return st.putParam(uint64(*x))
	case uint16:
		return st.putParam(uint64(x))
	case *uint16:
		return st.putParam(uint64(*x))
	case uint32:
		return st.putParam(uint64(x))
	case *uint32:
		return st.putParam(uint64(*x))
	case uint64:
		return st.putParam(x)
	case *uint64:
		return st.putParam(*x)
	case float32:
		return st.putParam(float64(x))
	case *float32:
		return st.putParam(float64(*x))
	case float64:
		return st.putParam(x)
	case *float64:
		return st.putParam(*x)
	case string:
		return st.putParam(x)
	case *string:
		return st.putParam(*x)
	case []byte:
		// callers keep ownership of their buffer; copy before handing over
		buf := make([]byte, len(x))
		copy(buf, x)
		return st.putParam(buf)
	case *[]byte:
		buf := make([]byte, len(*x))
		copy(buf, *x)
		return st.putParam(buf)
	case time.Time:
		return st.putParam(x)
	case *time.Time:
		return st.putParam(*x)
	case Static:
		return st.putParam(string(x))
	case *Static:
		return st.putParam(string(*x))
	case Blob:
		return st.bindBlob(&x)
	case *Blob:
		return st.bindBlob(x)
	case ParamBinder:
		return x.BindParam(st)
	default:
		return st.bindParamReflect(v)
	}
}

// BindParamAt binds v at an explicit parameter slot instead of the next one.
func (st *Statement) BindParamAt(slot int, v any) error {
	saved := st.nextParam
	st.nextParam = slot
	err := st.BindParam(v)
	st.nextParam = saved
	return err
}

func (st *Statement) bindBlob(b *Blob) error {
	data := b.Data
	if !b.Static {
		data = make([]byte, len(b.Data))
		copy(data, b.Data)
	}
	if b.Slot > 0 {
		return st.putParamAt(b.Slot, data)
	}
	return st.putParam(data)
}

// bindParamReflect handles homogeneous collections: each element is bound
// through the scalar path in collection order, so the element marshalling
// stays untouched.
func (st *Statement) bindParamReflect(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Slice {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			if err := st.BindParam(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: cannot bind %T as parameter", ErrUnsupportedType, v)
}

// BindResult registers dest as the storage for the next result column.
// dest must be a pointer to a supported native type, a *Blob, a
// ResultBinder, or a pointer to a slice of such, scanned element-by-element
// in column order. The referenced storage must stay valid until the next
// NextRow call completes.
func (st *Statement) BindResult(dest any) error {
	switch x := dest.(type) {
	case *bool, *int, *int8, *int16, *int32, *int64,
		*uint, *uint8, *uint16, *uint32, *uint64,
		*float32, *float64, *string, *[]byte, *time.Time:
		return st.putResult(x)
	case Static, *Static:
		// parameter-only type; scanning into it would silently lose data
		panic(fmt.Sprintf("sorm: cannot bind %T as result: Static is parameter-only", dest))
	case Blob:
		return ErrNotAPointer
	case *Blob:
		return st.putResult(&x.Data)
	case ResultBinder:
		return x.BindResult(st)
	default:
		return st.bindResultReflect(dest)
	}
}

func (st *Statement) bindResultReflect(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: got %T", ErrNotAPointer, dest)
	}
	elem := rv.Elem()
	if elem.Kind() == reflect.Slice {
		for i := 0; i < elem.Len(); i++ {
			if err := st.BindResult(elem.Index(i).Addr().Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: cannot bind %T as result", ErrUnsupportedType, dest)
}
