package enhancer

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Keygen: true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Param:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

var rawTextElements = map[atom.Atom]bool{
	atom.Iframe:    true,
	atom.Noembed:   true,
	atom.Noframes:  true,
	atom.Noscript:  true,
	atom.Plaintext: true,
	atom.Script:    true,
	atom.Style:     true,
	atom.Xmp:       true,
}

// writeFragment переписывает ссылки внутри n и дописывает его разметку в b.
// Пустые элементы и пробельные текстовые узлы ничего не добавляют.
func writeFragment(b *strings.Builder, n *html.Node, baseURL string) {
	if isEmptyNode(n) {
		return
	}
	rewriteLinks(n, baseURL)
	var buf bytes.Buffer
	if err := renderNode(&buf, n); err != nil {
		return
	}
	b.Write(buf.Bytes())
}

// renderNode сериализует n как html.Render, но пустые элементы
// пишутся в форме HTML, без "/>": <img src="...">.
// Элементы с сырым текстом и чужие пространства имен отдаются html.Render.
func renderNode(w *bytes.Buffer, n *html.Node) error {
	if n.Type != html.ElementNode || n.Namespace != "" || rawTextElements[n.DataAtom] {
		return html.Render(w, n)
	}
	w.WriteByte('<')
	w.WriteString(n.Data)
	for _, a := range n.Attr {
		w.WriteByte(' ')
		if a.Namespace != "" {
			w.WriteString(a.Namespace)
			w.WriteByte(':')
		}
		w.WriteString(a.Key)
		w.WriteString(`="`)
		w.WriteString(html.EscapeString(a.Val))
		w.WriteByte('"')
	}
	w.WriteByte('>')
	if voidElements[n.DataAtom] {
		return nil
	}
	if c := n.FirstChild; c != nil && c.Type == html.TextNode && strings.HasPrefix(c.Data, "\n") {
		switch n.DataAtom {
		case atom.Pre, atom.Listing, atom.Textarea:
			w.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := renderNode(w, c); err != nil {
			return err
		}
	}
	w.WriteString("</")
	w.WriteString(n.Data)
	w.WriteByte('>')
	return nil
}

func isEmptyNode(n *html.Node) bool {
	switch n.Type {
	case html.TextNode:
		return strings.TrimSpace(n.Data) == ""
	case html.ElementNode:
		return n.FirstChild == nil && !voidElements[n.DataAtom]
	}
	return false
}

// rewriteLinks делает абсолютными href у ссылок и src у изображений
// и открывает ссылки в новой вкладке.
func rewriteLinks(n *html.Node, baseURL string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.A:
			if rewriteAttr(n, "href", baseURL) {
				setAttr(n, "target", "_blank")
			}
		case atom.Img:
			rewriteAttr(n, "src", baseURL)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteLinks(c, baseURL)
	}
}

func rewriteAttr(n *html.Node, key, baseURL string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = ResolveURL(baseURL, a.Val)
			return true
		}
	}
	return false
}

// setAttr заменяет значение атрибута или добавляет его первым.
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append([]html.Attribute{{Key: key, Val: val}}, n.Attr...)
}

// rewriteHTML разбирает готовый HTML-фрагмент и переписывает в нем ссылки.
func rewriteHTML(content, baseURL string) string {
	nodes, err := html.ParseFragment(strings.NewReader(content), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, n := range nodes {
		writeFragment(&b, n, baseURL)
	}
	return strings.TrimSpace(b.String())
}
