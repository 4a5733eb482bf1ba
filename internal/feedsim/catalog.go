package feedsim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/abelbrown/thinktok/internal/api"
)

// ContentID derives the stable card ID for a page title.
func ContentID(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:])[:16]
}

// Page is one catalogue entry.
type Page struct {
	Title        string
	Summary      string
	WholeSummary string
	Image        string
	Related      []string
	Categories   []string
}

func (p Page) item() api.FeedItem {
	return api.FeedItem{
		ContentID:    ContentID(p.Title),
		Title:        p.Title,
		Summary:      p.Summary,
		WholeSummary: p.WholeSummary,
		Image:        p.Image,
		Related:      append([]string(nil), p.Related...),
		Categories:   append([]string(nil), p.Categories...),
	}
}

var seedPages = []Page{
	{Title: "Octopus", Summary: "Octopuses are soft-bodied cephalopods with eight arms.", Categories: []string{"Animals", "Cephalopods"}, Related: []string{"Squid", "Cuttlefish"}},
	{Title: "Aurora", Summary: "An aurora is a natural light display in the polar sky.", WholeSummary: "An aurora is a natural light display in the polar sky, caused by charged particles from the solar wind exciting atoms in the upper atmosphere.", Categories: []string{"Atmospheric optics"}},
	{Title: "Voynich manuscript", Summary: "An illustrated codex written in an undeciphered script.", Categories: []string{"Manuscripts", "Undeciphered writing systems"}},
	{Title: "Tardigrade", Summary: "Microscopic animals able to survive extreme conditions.", Categories: []string{"Animals", "Extremophiles"}, Related: []string{"Cryptobiosis"}},
	{Title: "Antikythera mechanism", Summary: "An ancient Greek hand-powered orrery.", WholeSummary: "An ancient Greek hand-powered orrery, described as the oldest known example of an analogue computer, used to predict astronomical positions and eclipses.", Categories: []string{"Ancient Greek technology"}},
	{Title: "Bioluminescence", Summary: "The production and emission of light by living organisms.", Categories: []string{"Biology"}},
	{Title: "Great Molasses Flood", Summary: "A 1919 disaster in Boston when a storage tank burst.", Categories: []string{"Disasters", "Boston"}},
	{Title: "Mantis shrimp", Summary: "Marine crustaceans known for their powerful strike.", Categories: []string{"Animals", "Crustaceans"}},
	{Title: "Tunguska event", Summary: "A large explosion over Siberia in 1908.", Categories: []string{"Impact events"}},
	{Title: "Fibonacci sequence", Summary: "Each number is the sum of the two preceding ones.", Categories: []string{"Mathematics"}},
	{Title: "Blue whale", Summary: "The largest animal known to have ever existed.", Categories: []string{"Animals", "Whales"}},
	{Title: "Rosetta Stone", Summary: "A stele inscribed with a decree in three scripts.", Categories: []string{"Egyptology"}},
	{Title: "Axolotl", Summary: "A neotenic salamander native to Mexico City lakes.", Categories: []string{"Animals", "Amphibians"}},
	{Title: "Chess boxing", Summary: "A hybrid sport alternating rounds of chess and boxing.", Categories: []string{"Hybrid sports"}},
	{Title: "Ball lightning", Summary: "An unexplained luminous spherical phenomenon.", Categories: []string{"Atmospheric electricity"}},
	{Title: "Pando", Summary: "A clonal colony of quaking aspen in Utah.", Categories: []string{"Individual trees"}},
	{Title: "Lake Nyos", Summary: "A crater lake that released a cloud of carbon dioxide in 1986.", Categories: []string{"Lakes", "Disasters"}},
	{Title: "Kessler syndrome", Summary: "A cascade of collisions among objects in low Earth orbit.", Categories: []string{"Space debris"}},
	{Title: "Honey badger", Summary: "A mustelid noted for its fearlessness.", Categories: []string{"Animals"}},
	{Title: "Library of Alexandria", Summary: "One of the largest libraries of the ancient world.", Categories: []string{"Ancient libraries"}},
}

// GeneratePages returns n synthetic pages, for catalogues larger than the seed set.
func GeneratePages(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		title := fmt.Sprintf("Article %03d", i+1)
		pages[i] = Page{
			Title:      title,
			Summary:    "Summary of " + strings.ToLower(title) + ".",
			Categories: []string{fmt.Sprintf("Group %d", i%5)},
		}
	}
	return pages
}

// SeedPages returns a copy of the built-in catalogue.
func SeedPages() []Page {
	return append([]Page(nil), seedPages...)
}
