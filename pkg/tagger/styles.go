package tagger

// styleTerms are attribute labels returned by the apparel classifier that describe
// a pattern, cut or material rather than a garment.
var styleTerms = map[string]struct{}{
	"3/4 sleeve": {}, "argyle": {}, "asymmetric/one-shoulder": {}, "cableknit": {},
	"camouflage": {}, "cheetah": {}, "chelsea boots": {}, "chevron/zig-zag": {},
	"cowl neck": {}, "crewneck": {}, "crop top": {}, "culottes": {},
	"d'orsay": {}, "damask": {}, "dangle earrings": {}, "eyelet": {},
	"fair isle": {}, "floral": {}, "fur": {}, "gingham": {},
	"giraffe": {}, "glitter": {}, "graphic": {}, "hair tie": {},
	"heart": {}, "henley": {}, "herringbone": {}, "long-sleeve": {},
	"mockneck": {}, "off-shoulder": {}, "paisley": {}, "patchwork": {},
	"peter pan collar": {}, "pleated": {}, "polka dot": {}, "puff sleeve": {},
	"ruffle": {}, "scalloped": {}, "scoopneck": {}, "sequin": {},
	"shawl collar": {}, "squareneck": {}, "star": {}, "stripes": {},
	"stud earrings": {}, "suede": {}, "sweetheart": {}, "tartan/plaid": {},
	"tattersall": {}, "tie-dye/shibori": {}, "toile": {}, "tortoise": {},
	"tropical": {}, "tulle": {}, "turtleneck": {}, "v-neck": {},
	"velvet": {}, "windowpane": {}, "zebra": {},
}

// IsStyleTerm reports whether name is a stylistic attribute rather than a garment.
func IsStyleTerm(name string) bool {
	_, ok := styleTerms[name]
	return ok
}
