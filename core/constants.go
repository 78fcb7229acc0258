package core

// Well-known namespace URIs and reserved names, per Namespaces in XML 1.0
// and the XML 1.0 / XML Schema specifications.
const (
	EmptyString string = ""

	XMLNSPrefix            string = "xmlns"
	XMLNSAttributeNSURI    string = "http://www.w3.org/2000/xmlns/"
	XMLPrefix              string = "xml"
	XMLNamespaceURI        string = "http://www.w3.org/XML/1998/namespace"
	XMLDefaultNSPrefix     string = ""
	XMLNullNSURI           string = ""
	XMLSchemaInstanceNSURI string = "http://www.w3.org/2001/XMLSchema-instance"
	XMLSchemaNSURI         string = "http://www.w3.org/2001/XMLSchema"

	XSIPrefix string = "xsi"
	XSIType   string = "type"
	XSINil    string = "nil"

	NotFound int = -1
)

// PrefixesXML and LocalNamesXML are the attribute names bound under the
// predefined "xml" prefix without any declaration: xml:base, xml:id,
// xml:lang, xml:space.
var (
	PrefixesXML   = []string{"xml"}
	LocalNamesXML = []string{"base", "id", "lang", "space"}
)

// PredefinedEntities are the five general entities every XML 1.0 document
// may reference without declaring them.
var PredefinedEntities = map[string]rune{
	"lt":   '<',
	"gt":   '>',
	"amp":  '&',
	"apos": '\'',
	"quot": '"',
}

// Feature and property name constants recognized by Parser.SetFeature/
// GetFeature and SetProperty/GetProperty live in options.go, alongside the
// Features/Properties types that consume them.
