package docstore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/eternalApril/objectdb/internal/document"
)

// toBSON translates a filter into a query document
func (f Filter) toBSON() bson.M {
	q := bson.M{}
	if len(f.Keys) == 1 {
		q[document.FieldKey] = f.Keys[0]
	} else {
		q[document.FieldKey] = bson.M{"$in": f.Keys}
	}

	switch len(f.Values) {
	case 0:
	case 1:
		q[document.FieldValue] = f.Values[0]
	default:
		q[document.FieldValue] = bson.M{"$in": f.Values}
	}

	if f.EmptyArray != "" {
		q[f.EmptyArray] = bson.M{"$size": 0}
	}
	return q
}

// toBSON translates an update into update operators
func (u Update) toBSON() bson.M {
	out := bson.M{}

	if len(u.Set) > 0 {
		out["$set"] = bson.M(u.Set)
	}
	if len(u.Unset) > 0 {
		unset := bson.M{}
		for _, field := range u.Unset {
			unset[field] = ""
		}
		out["$unset"] = unset
	}
	if len(u.Inc) > 0 {
		out["$inc"] = bson.M(u.Inc)
	}
	if len(u.AddToSet) > 0 {
		add := bson.M{}
		for field, values := range u.AddToSet {
			add[field] = bson.M{"$each": values}
		}
		out["$addToSet"] = add
	}
	if len(u.PullAll) > 0 {
		pull := bson.M{}
		for field, values := range u.PullAll {
			pull[field] = values
		}
		out["$pullAll"] = pull
	}
	if len(u.Push) > 0 || len(u.PushFront) > 0 {
		push := bson.M{}
		for field, values := range u.Push {
			push[field] = bson.M{"$each": values}
		}
		for field, values := range u.PushFront {
			push[field] = bson.M{"$each": values, "$position": 0}
		}
		out["$push"] = push
	}
	if len(u.Pop) > 0 {
		pop := bson.M{}
		for field, end := range u.Pop {
			pop[field] = end
		}
		out["$pop"] = pop
	}

	return out
}

// fromBSON converts a decoded record into a Document with plain Go values:
// arrays become []any, embedded documents map[string]any and dates time.Time
func fromBSON(m bson.M) document.Document {
	doc := make(document.Document, len(m))
	for k, v := range m {
		if k == document.FieldID {
			continue
		}
		doc[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.A:
		return normalizeArray(t)
	case []any:
		return normalizeArray(t)
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = normalize(el)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, el := range t {
			out[el.Key] = normalize(el.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func normalizeArray(arr []any) []any {
	out := make([]any, len(arr))
	for i, el := range arr {
		out[i] = normalize(el)
	}
	return out
}
