// Package catalog compiles CUE mapping catalogs: the persistent entities
// and properties the translator may push to the server, the enums they
// use, the server-side functions it may call and the result operators the
// flattener may relocate.
//
// A catalog directory holds one CUE package:
//
//	namespace: "shop"
//	enum: Status: {underlying: "int", values: {Active: 1, Retired: 2}}
//	entity: Person: {
//		table: "people"
//		properties: {Name: "string", Age: "int?", Status: "enum:Status", Manager: "entity:Person"}
//	}
//	function: {
//		"string": Length: {kind: "member", hql: "length"}
//		Clock: Today: {hql: "current_date", ignore_instance: true}
//	}
//	flattenable: ["lock", "fetch_lazy_properties", "fetch_one", "fetch_many", "as_queryable"]
//
// Compilation problems are reported as *CompileError with the CUE source
// position; failures to read the directory are *LoadError.
//
// A compiled Catalog is the mapped-type resolver (Resolve), builds the
// function registry (Registry) and the flattening allow-list
// (Flattenable). It is immutable and shared freely between translations.
package catalog
