package extensions

// defaultAllowlist is the curated set of third-party packages an extension
// may declare as dependencies. Anything else is rejected at install time.
// The host ships these pre-bundled; no network installs happen at runtime.
var defaultAllowlist = []string{
	// imaging
	"github.com/disintegration/imaging",
	"github.com/fogleman/gg",
	"golang.org/x/image",
	// documents and reporting
	"github.com/jung-kurt/gofpdf",
	"github.com/signintech/gopdf",
	"github.com/xuri/excelize/v2",
	"github.com/tealeg/xlsx/v3",
	"github.com/yuin/goldmark",
	"github.com/olekukonko/tablewriter",
	// serialization
	"gopkg.in/yaml.v3",
	"github.com/pelletier/go-toml/v2",
	"google.golang.org/protobuf",
	"github.com/vmihailenco/msgpack/v5",
	// cryptography
	"golang.org/x/crypto",
	"github.com/golang-jwt/jwt/v5",
	"filippo.io/age",
	// HTTP and scraping
	"github.com/go-resty/resty/v2",
	"github.com/gorilla/websocket",
	"golang.org/x/net",
	"github.com/PuerkitoBio/goquery",
	// data analysis
	"gonum.org/v1/gonum",
	"github.com/go-gota/gota",
	"github.com/montanaflynn/stats",
	// general utilities
	"github.com/google/uuid",
	"github.com/shopspring/decimal",
	"github.com/dustin/go-humanize",
	"github.com/robfig/cron/v3",
}

// DefaultAllowlist returns a copy of the curated dependency allow-list.
func DefaultAllowlist() []string {
	out := make([]string, len(defaultAllowlist))
	copy(out, defaultAllowlist)
	return out
}

// DefaultBundled returns the versions of the allow-listed packages shipped
// with this host build. Installs verify dependency constraints against
// this set; nothing is fetched at runtime.
func DefaultBundled() map[string]string {
	return map[string]string{
		"github.com/disintegration/imaging": "1.6.2",
		"github.com/fogleman/gg":            "1.3.0",
		"golang.org/x/image":                "0.18.0",
		"github.com/jung-kurt/gofpdf":       "1.16.2",
		"github.com/signintech/gopdf":       "0.26.1",
		"github.com/xuri/excelize/v2":       "2.8.1",
		"github.com/tealeg/xlsx/v3":         "3.3.6",
		"github.com/yuin/goldmark":          "1.7.4",
		"github.com/olekukonko/tablewriter": "0.0.5",
		"gopkg.in/yaml.v3":                  "3.0.1",
		"github.com/pelletier/go-toml/v2":   "2.2.2",
		"google.golang.org/protobuf":        "1.34.2",
		"github.com/vmihailenco/msgpack/v5": "5.4.1",
		"golang.org/x/crypto":               "0.25.0",
		"github.com/golang-jwt/jwt/v5":      "5.2.1",
		"filippo.io/age":                    "1.2.0",
		"github.com/go-resty/resty/v2":      "2.13.1",
		"github.com/gorilla/websocket":      "1.5.3",
		"golang.org/x/net":                  "0.27.0",
		"github.com/PuerkitoBio/goquery":    "1.9.2",
		"gonum.org/v1/gonum":                "0.15.0",
		"github.com/go-gota/gota":           "0.12.0",
		"github.com/montanaflynn/stats":     "0.7.1",
		"github.com/google/uuid":            "1.6.0",
		"github.com/shopspring/decimal":     "1.4.0",
		"github.com/dustin/go-humanize":     "1.0.1",
		"github.com/robfig/cron/v3":         "3.0.1",
	}
}
