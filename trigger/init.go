package trigger

import (
	"github.com/tidwall/gjson"
)

func init() {

	// Dataverse serialises typed attribute values (Money, OptionSetValue,
	// BooleanManagedProperty) as {"__type":"Money:http://...","Value":150.0}.
	// @xrmValue unwraps them and leaves plain values untouched.
	gjson.AddModifier("xrmValue", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() {
			return ""
		}
		if res.IsObject() && res.Get("__type").Exists() {
			if v := res.Get("Value"); v.Exists() {
				return v.Raw
			}
		}
		return json
	})

}
