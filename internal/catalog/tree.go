// Package catalog holds the built-in category tree of the shop and discovers
// product links on its listing pages.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/pkg/models"
)

// Node is one category in the tree. URL is relative to the shop base URL.
type Node struct {
	Name          string           `json:"name"`
	URL           string           `json:"url"`
	Subcategories map[string]*Node `json:"subcategories,omitempty"`
}

// Tree maps top-level keys ("women", "men") to their categories
type Tree map[string]*Node

func leaf(name, url string) *Node { return &Node{Name: name, URL: url} }

func branch(name, url string, subs map[string]*Node) *Node {
	return &Node{Name: name, URL: url, Subcategories: subs}
}

// Default is the built-in ASOS category tree
var Default = Tree{
	"women": branch("Women", "/women/", map[string]*Node{
		"clothing": branch("Clothing", "/women/ctas/clothing/cat/?cid=3934", map[string]*Node{
			"tops": branch("Tops", "/women/tops/cat/?cid=4169", map[string]*Node{
				"t-shirts":                 leaf("T-Shirts", "/women/t-shirts-vests/cat/?cid=4718"),
				"shirts":                   leaf("Shirts", "/women/shirts/cat/?cid=15200"),
				"shirts-blouses":           leaf("Blouses", "/women/blouses/cat/?cid=15199"),
				"crop-tops":                leaf("Crop Tops", "/women/top/cat/?cid=15196"),
				"bodysuits":                leaf("Bodysuits", "/women/top/bodysuits/cat/?cid=11323"),
				"printed-graphic-t-shirts": leaf("Printed & Graphic T-Shirts", "/women/tops/printed-graphic-t-shirts/cat/?cid=19825"),
				"crochet-tops":             leaf("Crochet Tops", "/women/tops/crochet-tops/cat/?cid=51078"),
				"tie-front-tops":           leaf("Tie Front Tops", "/women/tops/tie-front-tops/cat/?cid=51707"),
				"sequin-tops":              leaf("Sequin Tops", "/women/tops/sequin-tops/cat/?cid=28014"),
				"evening-tops":             leaf("Evening Tops", "/women/tops/evening-tops/cat/?cid=11320"),
				"camis":                    leaf("Camis", "/women/tops/camis/cat/?cid=15202"),
				"long-sleeve-tops":         leaf("Long Sleeve Tops", "/women/tops/long-sleeve-tops/cat/?cid=17334"),
				"lace-tops":                leaf("Lace Tops", "/women/tops/lace-tops/cat/?cid=20980"),
				"corset-tops":              leaf("Corset Tops", "/women/tops/corset-tops/cat/?cid=50070"),
			}),
			"outerwear": branch("Outerwear", "/women/jackets-coats/cat/?cid=2641", map[string]*Node{
				"blazers":  leaf("Blazers", "/women/suits-separates/blazers/cat/?cid=11896"),
				"jackets":  leaf("Jackets & Coats", "/women/jackets-coats/cat/?cid=2641"),
				"knitwear": leaf("Knitwear", "/women/knitwear/cat/?cid=2637"),
			}),
			"bottoms": branch("Bottoms", "/women/trousers-leggings/cat/?cid=2640", map[string]*Node{
				"jeans":    leaf("Jeans & Leggings", "/women/jeans/cat/?cid=3630"),
				"trousers": leaf("Trousers", "/women/trousers-leggings/cat/?cid=2640"),
				"skirts":   leaf("Skirts", "/women/skirts/cat/?cid=2639"),
				"shorts":   leaf("Shorts", "/women/shorts/cat/?cid=9263"),
			}),
			"dresses": branch("Dresses", "/women/dresses/cat/?cid=8799", map[string]*Node{
				"casual-dresses":  leaf("Casual Dresses", "/women/day-dresses/cat/?cid=8799"),
				"evening-dresses": leaf("Evening Dresses", "/women/going-out-dresses/cat/?cid=8799"),
				"midi-dresses":    leaf("Midi Dresses", "/women/midi-dresses/cat/?cid=15210"),
				"maxi-dresses":    leaf("Maxi Dresses", "/women/maxi-dresses/cat/?cid=15156"),
				"mini-dresses":    leaf("Mini Dresses", "/women/mini-dresses/cat/?cid=15947"),
			}),
		}),
		"shoes": branch("Shoes", "/women/shoes/cat/?cid=4172", map[string]*Node{
			"trainers": leaf("Trainers", "/women/shoes/trainers/cat/?cid=6456"),
			"heels":    leaf("Heels", "/women/shoes/heels/cat/?cid=6461"),
			"flats":    leaf("Flats", "/women/shoes/flat-shoes/cat/?cid=6459"),
			"boots":    leaf("Boots", "/women/shoes/boots/cat/?cid=6455"),
			"sandals":  leaf("Sandals", "/women/shoes/sandals/heeled-sandals/cat/?cid=17169"),
			"wedges":   leaf("Wedges", "/women/sandals/wedges/cat/?cid=10266"),
		}),
		"accessories": branch("Accessories", "/women/accessories/cat/?cid=4210", map[string]*Node{
			"bags":             leaf("Bags & Handbags", "/women/bags-purses/cat/?cid=8730"),
			"sunglasses":       leaf("Sunglasses", "/women/sunglasses/cat/?cid=6519"),
			"hair-accessories": leaf("Hair Accessories", "/women/accessories/hair-accessories/cat/?cid=11412"),
			"hats-alt":         leaf("Hats", "/women/accessories/hats/cat/?cid=6449"),
			"gifts":            leaf("Gifts", "/women/gifts-for-her/cat/?cid=16095"),
			"belts-alt":        leaf("Belts", "/women/accessories/belts/cat/?cid=6448"),
			"caps":             leaf("Caps", "/women/accessories/hats/caps/cat/?cid=25407"),
			"scarves-alt":      leaf("Scarves", "/women/accessories/scarves/cat/?cid=6452"),
			"socks-tights":     leaf("Socks & Tights", "/women/socks-tights/cat/?cid=7657"),
		}),
	}),
	"men": branch("Men", "/men/", map[string]*Node{
		"clothing": branch("Clothing", "/men/ctas/clothing/cat/?cid=1059", map[string]*Node{
			"tops": branch("Tops", "/men/t-shirts-vests/cat/?cid=7616", map[string]*Node{
				"t-shirts":    leaf("T-Shirts & Vests", "/men/t-shirts-vests/cat/?cid=7616"),
				"shirts":      leaf("Shirts", "/men/shirts/cat/?cid=3602"),
				"polo-shirts": leaf("Polo Shirts", "/men/polo-shirts/cat/?cid=4616"),
				"hoodies":     leaf("Hoodies & Sweatshirts", "/men/hoodies-sweatshirts/cat/?cid=5668"),
				"knitwear":    leaf("Knitwear", "/men/knitwear/cat/?cid=7617"),
				"tank-tops":   leaf("Tank Tops", "/men/vest-tops/cat/?cid=13210"),
			}),
			"bottoms": branch("Bottoms", "/men/trousers-chinos/cat/?cid=4910", map[string]*Node{
				"jeans":       leaf("Jeans", "/men/jeans/cat/?cid=4208"),
				"trousers":    leaf("Trousers & Chinos", "/men/trousers-chinos/cat/?cid=4910"),
				"shorts":      leaf("Shorts", "/men/shorts/cat/?cid=7078"),
				"joggers":     leaf("Joggers", "/men/joggers/cat/?cid=26090"),
				"cargo-pants": leaf("Cargo Pants", "/men/cargo-trousers/cat/?cid=18797"),
			}),
			"outerwear": branch("Jackets & Coats", "/men/jackets-coats/cat/?cid=3606", map[string]*Node{
				"jackets": leaf("Jackets", "/men/jackets/cat/?cid=3606"),
				"coats":   leaf("Coats", "/men/coats/cat/?cid=12181"),
				"blazers": leaf("Blazers", "/men/blazers/cat/?cid=12103"),
				"bombers": leaf("Bomber Jackets", "/men/bomber-jackets/cat/?cid=13210"),
			}),
		}),
		"shoes": branch("Shoes", "/men/shoes/cat/?cid=4209", map[string]*Node{
			"trainers":     leaf("Trainers", "/men/trainers/cat/?cid=5775"),
			"boots":        leaf("Boots", "/men/boots/cat/?cid=4212"),
			"formal-shoes": leaf("Formal Shoes", "/men/formal-shoes/cat/?cid=5770"),
			"casual-shoes": leaf("Casual Shoes", "/men/casual-shoes/cat/?cid=1935"),
			"sandals":      leaf("Sandals & Flip Flops", "/men/sandals-flip-flops/cat/?cid=4213"),
		}),
		"accessories": branch("Accessories", "/men/accessories/cat/?cid=4210", map[string]*Node{
			"bags":       leaf("Bags", "/men/bags/cat/?cid=9265"),
			"belts":      leaf("Belts", "/men/belts/cat/?cid=4251"),
			"hats":       leaf("Hats & Caps", "/men/hats-caps/cat/?cid=6102"),
			"watches":    leaf("Watches", "/men/watches/cat/?cid=4252"),
			"jewelry":    leaf("Jewelry", "/men/jewelry/cat/?cid=4253"),
			"sunglasses": leaf("Sunglasses", "/men/sunglasses/cat/?cid=6519"),
		}),
	}),
}

// walk resolves a dotted path, returning every node along the way
func (t Tree) walk(path string) ([]*Node, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", engine.ErrInvalidCategory)
	}

	var trail []*Node
	level := map[string]*Node(t)
	for _, part := range strings.Split(path, ".") {
		node, ok := level[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", engine.ErrInvalidCategory, path)
		}
		trail = append(trail, node)
		level = node.Subcategories
	}
	return trail, nil
}

// Lookup resolves a dotted path such as "women.clothing.tops.t-shirts"
func (t Tree) Lookup(path string) (*Node, error) {
	trail, err := t.walk(path)
	if err != nil {
		return nil, err
	}
	return trail[len(trail)-1], nil
}

// Breadcrumb returns the display names along path joined with " > ".
// Unknown segments are skipped.
func (t Tree) Breadcrumb(path string) string {
	var names []string
	level := map[string]*Node(t)
	for _, part := range strings.Split(path, ".") {
		node, ok := level[part]
		if !ok {
			continue
		}
		names = append(names, node.Name)
		level = node.Subcategories
	}
	return strings.Join(names, " > ")
}

// Resolve returns the absolute listing URL and the category info for path
func (t Tree) Resolve(baseURL, path string) (string, *models.CategoryInfo, error) {
	node, err := t.Lookup(path)
	if err != nil {
		return "", nil, err
	}
	if node.URL == "" {
		return "", nil, fmt.Errorf("%w: %s has no listing page", engine.ErrInvalidCategory, path)
	}
	info := &models.CategoryInfo{Path: path, Breadcrumb: t.Breadcrumb(path)}
	return strings.TrimRight(baseURL, "/") + node.URL, info, nil
}

// Paths lists every dotted path in the tree in sorted order
func (t Tree) Paths() []string {
	var out []string
	var visit func(prefix string, level map[string]*Node)
	visit = func(prefix string, level map[string]*Node) {
		for key, node := range level {
			p := key
			if prefix != "" {
				p = prefix + "." + key
			}
			out = append(out, p)
			visit(p, node.Subcategories)
		}
	}
	visit("", t)
	sort.Strings(out)
	return out
}
