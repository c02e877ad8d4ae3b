// Package savable encodes graphs of polymorphic, versioned objects into a
// self-describing document tree and decodes them back.
//
// Every object implements Savable and writes or reads itself field by field
// through a capsule. A nested object is stored as a two-element list
//
//	["<type identifier>", {<fields>}]
//
// and its concrete type is recovered on read from the identifier alone,
// through a Registry the host fills at startup. Fields equal to the
// caller's default are omitted; absent fields read back as that default.
//
// The root document is a mapping holding format_version, savable_type and
// the root object's own fields:
//
//	{
//	  "format_version": 2,
//	  "savable_type": "scene.Node",
//	  "name": "root",
//	  "children": [["scene.Node", {"name": "leaf"}]]
//	}
//
// Exporter and Importer wrap this with JSON, YAML or CBOR output and an
// optional zstd or lz4 envelope from package stream.
package savable

// FormatVersion is the document layout version this package writes.
const FormatVersion = 2

// Reserved document keys.
const (
	// KeyFormatVersion holds the document's format version at the root.
	KeyFormatVersion = "format_version"
	// KeySavableType names the root object's type at the root.
	KeySavableType = "savable_type"
	// KeyLegacyType is the older spelling of KeySavableType, read only.
	KeyLegacyType = "type"
	// KeyHierarchyVersions holds "v0,v1,..." inside an object's fields.
	KeyHierarchyVersions = "class_hierarchy_versions"
)

func isReserved(name string, root bool) bool {
	if name == KeyHierarchyVersions {
		return true
	}
	return root && (name == KeyFormatVersion || name == KeySavableType)
}
