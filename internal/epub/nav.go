package epub

import (
	"bytes"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type ncxDoc struct {
	NavMap struct {
		Points []navPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type navPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

// navigationTitles maps hrefs to titles from the NCX file beside the package
// document, falling back to an EPUB 3 navigation document.
func (p *Parser) navigationTitles(fsys fs.FS, doc *Document) map[string]string {
	titles := make(map[string]string)

	matches, _ := fs.Glob(fsys, path.Join(doc.Dir(), "*.ncx"))
	sort.Strings(matches)
	if len(matches) > 0 {
		var ncx ncxDoc
		if err := decodeXML(fsys, matches[0], &ncx); err != nil {
			p.logger.Warn("navigation document unreadable, titles left empty", "path", matches[0], "error", err)
			return titles
		}
		walkNavPoints(ncx.NavMap.Points, titles)
		return titles
	}

	item, ok := doc.itemWithProperty("nav")
	if !ok {
		return titles
	}
	data, err := readHref(fsys, doc.Resolve(item.Href))
	if err != nil {
		p.logger.Warn("navigation document unreadable, titles left empty", "href", item.Href, "error", err)
		return titles
	}
	navTitles(data, path.Dir(item.Href), titles)
	return titles
}

// walkNavPoints records every labeled navPoint, depth first. The first
// title seen for an href wins.
func walkNavPoints(points []navPoint, titles map[string]string) {
	for _, np := range points {
		href := stripFragment(np.Content.Src)
		label := strings.TrimSpace(np.Label)
		if href != "" && label != "" {
			if _, seen := titles[href]; !seen {
				titles[href] = label
			}
		}
		walkNavPoints(np.Children, titles)
	}
}

// navTitles collects <a href> labels from the toc <nav> of an XHTML
// navigation document. Hrefs are rebased from navDir onto the package
// document directory.
func navTitles(data []byte, navDir string, titles map[string]string) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return
	}

	var navs []*html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
			navs = append(navs, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	if len(navs) == 0 {
		return
	}

	toc := navs[0]
	for _, n := range navs {
		if attr(n, "epub:type") == "toc" {
			toc = n
			break
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := stripFragment(attr(n, "href"))
			label := strings.Join(strings.Fields(textContent(n)), " ")
			if href != "" && label != "" {
				if navDir != "." && navDir != "" {
					href = path.Join(navDir, href)
				}
				if _, seen := titles[href]; !seen {
					titles[href] = label
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(toc)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		if name == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func hasProperty(props, want string) bool {
	for _, p := range strings.Fields(props) {
		if p == want {
			return true
		}
	}
	return false
}
