package category

import "github.com/wha7/wha7/pkg/types"

// gendered maps (gender, concept) to an eBay category id. Unisex rows are also
// registered under men and women when the table is built.
var gendered = map[Key]string{
	{types.Women, "bag"}:                 "169291",
	{types.Men, "bag"}:                   "169291",
	{types.Men, "belt"}:                  "2993",
	{types.Women, "belt"}:                "3003",
	{types.Men, "bowtie"}:                "15662",
	{types.Men, "bracelet"}:              "137835",
	{types.Women, "bracelet"}:            "164315",
	{types.Women, "dress"}:               "63861",
	{types.Men, "earrings"}:              "137856",
	{types.Women, "earrings"}:            "164321",
	{types.Women, "glasses"}:             "180957",
	{types.Men, "glasses"}:               "180957",
	{types.Men, "gloves"}:                "52347",
	{types.Women, "gloves"}:              "105559",
	{types.Women, "hair clip"}:           "110627",
	{types.Men, "hat"}:                   "52365",
	{types.Women, "hat"}:                 "3004",
	{types.Women, "headband"}:            "163628",
	{types.Women, "hosiery"}:             "11511",
	{types.Men, "hosiery"}:               "4250",
	{types.Women, "jumpsuit"}:            "3009",
	{types.Men, "jumpsuit"}:              "57988",
	{types.Men, "mittens"}:               "52347",
	{types.Women, "mittens"}:             "105559",
	{types.Men, "necklace"}:              "137860",
	{types.Women, "necklace"}:            "164329",
	{types.Men, "necktie"}:               "15662",
	{types.Men, "outerwear"}:             "57988",
	{types.Women, "outerwear"}:           "63862",
	{types.Men, "pants"}:                 "57989",
	{types.Women, "pants"}:               "63863",
	{types.Women, "pin/brooch"}:          "110626",
	{types.Men, "pocket square"}:         "15662",
	{types.Men, "ring"}:                  "137856",
	{types.Women, "ring"}:                "164343",
	{types.Women, "romper"}:              "63861",
	{types.Men, "scarf"}:                 "52366",
	{types.Women, "scarf"}:               "45238",
	{types.Men, "shoes"}:                 "93427",
	{types.Women, "shoes"}:               "3034",
	{types.Men, "shorts"}:                "15689",
	{types.Women, "shorts"}:              "11555",
	{types.Women, "skirt"}:               "63864",
	{types.Men, "socks"}:                 "4250",
	{types.Women, "socks"}:               "11511",
	{types.Men, "sunglasses"}:            "179247",
	{types.Women, "sunglasses"}:          "179247",
	{types.Men, "suspenders"}:            "15662",
	{types.Men, "swimwear"}:              "15690",
	{types.Women, "swimwear"}:            "63867",
	{types.Men, "tie clip"}:              "15662",
	{types.Women, "top"}:                 "53159",
	{types.Men, "top"}:                   "1059",
	{types.Men, "vest"}:                  "15691",
	{types.Women, "vest"}:                "63866",
	{types.Men, "watch"}:                 "31387",
	{types.Women, "watch"}:               "31387",
	{types.Men, "t-shirt"}:               "15687",
	{types.Women, "t-shirt"}:             "15724",
	{types.Men, "jeans"}:                 "11483",
	{types.Women, "jeans"}:               "11554",
	{types.Men, "jacket"}:                "57988",
	{types.Women, "jacket"}:              "63862",
	{types.Men, "coat"}:                  "57988",
	{types.Women, "coat"}:                "63862",
	{types.Men, "suit"}:                  "3001",
	{types.Women, "suit"}:                "63865",
	{types.Men, "sweater"}:               "11484",
	{types.Women, "sweater"}:             "63866",
	{types.Women, "blouse"}:              "53159",
	{types.Men, "hoodie"}:                "11484",
	{types.Women, "hoodie"}:              "63866",
	{types.Women, "cardigan"}:            "63866",
	{types.Men, "cardigan"}:              "11484",
	{types.Women, "leggings"}:            "169001",
	{types.Women, "bikini"}:              "63867",
	{types.Women, "gown"}:                "15720",
	{types.Men, "cape"}:                  "57988",
	{types.Women, "cape"}:                "63862",
	{types.Men, "mask"}:                  "183477",
	{types.Women, "mask"}:                "183477",
	{types.Men, "overalls"}:              "57988",
	{types.Women, "overalls"}:            "11554",
	{types.Men, "poncho"}:                "57988",
	{types.Women, "poncho"}:              "63862",
	{types.Women, "sarong"}:              "63867",
	{types.Women, "shawl"}:               "45238",
	{types.Men, "sleepwear"}:             "11510",
	{types.Women, "sleepwear"}:           "63861",
	{types.Men, "tracksuit"}:             "15692",
	{types.Women, "tracksuit"}:           "11554",
	{types.Men, "trousers"}:              "57989",
	{types.Women, "trousers"}:            "63863",
	{types.Men, "backpack"}:              "169291",
	{types.Women, "backpack"}:            "169291",
	{types.Women, "bandeau"}:             "63867",
	{types.Men, "beanie"}:                "52382",
	{types.Women, "beanie"}:              "52382",
	{types.Men, "beret"}:                 "52382",
	{types.Women, "beret"}:               "52382",
	{types.Men, "bermuda shorts"}:        "15689",
	{types.Women, "bermuda shorts"}:      "11555",
	{types.Men, "biker jacket"}:          "57988",
	{types.Women, "biker jacket"}:        "63862",
	{types.Women, "bikini bottom"}:       "63867",
	{types.Women, "bikini set"}:          "63867",
	{types.Women, "bikini top"}:          "63867",
	{types.Men, "blazer"}:                "3002",
	{types.Women, "blazer"}:              "63865",
	{types.Women, "boatneck/bateau"}:     "53159",
	{types.Men, "bomber"}:                "57988",
	{types.Women, "bomber"}:              "63862",
	{types.Women, "booties"}:             "3034",
	{types.Women, "bra"}:                 "63853",
	{types.Unisex, "bucket hat"}:         "52382",
	{types.Women, "camisole"}:            "11514",
	{types.Men, "cape/poncho"}:           "57988",
	{types.Women, "cape/poncho"}:         "63862",
	{types.Women, "capris"}:              "63863",
	{types.Women, "capsleeve"}:           "53159",
	{types.Men, "cargo pants"}:           "57989",
	{types.Women, "cargo pants"}:         "63863",
	{types.Men, "cargo shorts"}:          "15689",
	{types.Women, "cargo shorts"}:        "11555",
	{types.Men, "denim jacket"}:          "57988",
	{types.Women, "denim jacket"}:        "63862",
	{types.Men, "duffle coat"}:           "57988",
	{types.Women, "duffle coat"}:         "63862",
	{types.Unisex, "fedora"}:             "52382",
	{types.Men, "field jacket"}:          "57988",
	{types.Women, "field jacket"}:        "63862",
	{types.Women, "flats"}:               "3034",
	{types.Men, "fleece"}:                "11484",
	{types.Women, "fleece"}:              "63866",
	{types.Men, "flip-flops"}:            "11504",
	{types.Women, "flip-flops"}:          "3034",
	{types.Women, "floppy hat"}:          "3004",
	{types.Women, "halter"}:              "11514",
	{types.Men, "loafers"}:               "93427",
	{types.Women, "loafers"}:             "3034",
	{types.Women, "maxi dress"}:          "63861",
	{types.Women, "maxi skirt"}:          "63864",
	{types.Women, "midi dress"}:          "63861",
	{types.Women, "midi skirt"}:          "63864",
	{types.Women, "mini dress"}:          "63861",
	{types.Women, "mini skirt"}:          "63864",
	{types.Women, "mockneck"}:            "53159",
	{types.Women, "mules"}:               "3034",
	{types.Unisex, "newsboy/flat cap"}:   "52382",
	{types.Women, "one piece swimsuit"}:  "63867",
	{types.Men, "oxfords"}:               "93427",
	{types.Women, "oxfords"}:             "3034",
	{types.Men, "pajamas"}:               "11510",
	{types.Women, "pajamas"}:             "63861",
	{types.Men, "parka"}:                 "57988",
	{types.Women, "parka"}:               "63862",
	{types.Men, "peacoat"}:               "57988",
	{types.Women, "peacoat"}:             "63862",
	{types.Men, "polo"}:                  "1059",
	{types.Women, "polo"}:                "53159",
	{types.Men, "puffer coat"}:           "57988",
	{types.Women, "puffer coat"}:         "63862",
	{types.Men, "puffer vest"}:           "15691",
	{types.Women, "puffer vest"}:         "63866",
	{types.Women, "pumps"}:               "3034",
	{types.Men, "rain boots"}:            "93427",
	{types.Women, "rain boots"}:          "3034",
	{types.Men, "sandals"}:               "11504",
	{types.Women, "sandals"}:             "3034",
	{types.Women, "satchel"}:             "169291",
	{types.Men, "shirt"}:                 "1059",
	{types.Women, "shirt"}:               "53159",
	{types.Men, "short-sleeve"}:          "1059",
	{types.Women, "short-sleeve"}:        "53159",
	{types.Women, "shortalls"}:           "11554",
	{types.Women, "sleeveless"}:          "53159",
	{types.Men, "sleeveless"}:            "1059",
	{types.Women, "shoulder bag"}:        "169291",
	{types.Men, "sneakers"}:              "93427",
	{types.Women, "sneakers"}:            "3034",
	{types.Women, "spaghetti strap"}:     "11514",
	{types.Women, "strapless"}:           "53159",
	{types.Men, "suit jacketsuit pants"}: "3001",
	{types.Men, "sweater vest"}:          "11484",
	{types.Women, "sweater vest"}:        "63866",
	{types.Men, "sweatpants"}:            "11510",
	{types.Women, "sweatpants"}:          "11554",
	{types.Men, "sweatshirt"}:            "11484",
	{types.Women, "sweatshirt"}:          "63866",
	{types.Men, "swim trunks"}:           "15690",
	{types.Men, "tank"}:                  "15692",
	{types.Women, "tank"}:                "11514",
	{types.Women, "tote bag"}:            "169291",
	{types.Unisex, "trapper hat"}:        "52382",
	{types.Men, "trenchcoat"}:            "57988",
	{types.Women, "trenchcoat"}:          "63862",
	{types.Men, "waistcoat"}:             "15691",
	{types.Women, "waistcoat"}:           "63865",
	{types.Women, "wedges"}:              "3034",
	{types.Women, "wide leg pants"}:      "63863",
	{types.Women, "wristlet and clutch"}: "169291",
}
