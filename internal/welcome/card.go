// Package welcome renders member greeting cards and their accompanying messages.
package welcome

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	Width    = 1200
	Height   = 675
	Filename = "welcome.png"

	avatarSize   = 180
	borderSize   = avatarSize + 10
	avatarTop    = 120
	barHeight    = 8
	maxImageSize = 8 << 20
)

var (
	darkBackground = color.RGBA{R: 35, G: 39, B: 42, A: 255}
	DefaultAccent  = color.RGBA{R: 46, G: 204, B: 113, A: 255}
	lightText      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Accent converts a 0xRRGGBB embed colour into an opaque card colour.
func Accent(rgb int) color.RGBA {
	return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 255}
}

var ErrDownload = errors.New("image download failed")

type Card struct {
	Username    string
	AvatarURL   string
	ServerName  string
	MemberCount int
	Message     string
	Accent      color.RGBA
}

type Renderer struct {
	client        *http.Client
	backgroundURL string
	logger        *zap.Logger
	bold          *opentype.Font
	regular       *opentype.Font
}

func NewRenderer(client *http.Client, backgroundURL string, logger *zap.Logger) (*Renderer, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Renderer{client: client, backgroundURL: backgroundURL, logger: logger, bold: bold, regular: regular}, nil
}

// Render composes the card as PNG. Image downloads that fail degrade to a plain
// background or a placeholder avatar; only encoding errors are returned.
func (r *Renderer) Render(ctx context.Context, card Card) ([]byte, error) {
	accent := card.Accent
	if accent.A == 0 {
		accent = DefaultAccent
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(darkBackground), image.Point{}, draw.Src)

	if r.backgroundURL != "" {
		if background, err := r.fetchImage(ctx, r.backgroundURL); err != nil {
			r.logger.Warn("welcome background unavailable", zap.Error(err))
		} else {
			drawCover(canvas, background)
		}
	}

	draw.Draw(canvas, image.Rect(0, 0, Width, barHeight), image.NewUniform(accent), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, Height-barHeight, Width, Height), image.NewUniform(accent), image.Point{}, draw.Src)
	drawGradient(canvas)

	faces, err := r.faces()
	if err != nil {
		return nil, err
	}
	defer faces.close()

	avatar, err := r.fetchImage(ctx, card.AvatarURL)
	if err != nil {
		r.logger.Debug("avatar unavailable, using placeholder", zap.String("user", card.Username), zap.Error(err))
		avatar = placeholderAvatar(card.Username, accent, faces.initial)
	}
	drawAvatar(canvas, avatar, accent)

	center := Width / 2
	welcomeTop := avatarTop + borderSize + 30
	drawCentered(canvas, faces.title, "WELCOME", center, welcomeTop, lightText)

	usernameTop := welcomeTop + 50
	nameFace := faces.username
	if utf8.RuneCountInString(card.Username) > 20 {
		nameFace = faces.usernameLong
	}
	drawCentered(canvas, nameFace, card.Username, center, usernameTop, lightText)

	message := card.Message
	if message == "" {
		message = fmt.Sprintf("Welcome to %s!", card.ServerName)
	}
	messageTop := usernameTop + 70
	drawCentered(canvas, faces.subtitle, message, center, messageTop, lightText)

	countTop := messageTop + 60
	drawCentered(canvas, faces.small, fmt.Sprintf("You are the %s member", Ordinal(card.MemberCount)), center, countTop, lightText)

	drawCentered(canvas, faces.subtitle, "• • •", center, Height-50, accent)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// Download fetches url, wrapping every failure in ErrDownload.
func Download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", ErrDownload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return data, nil
}

func (r *Renderer) fetchImage(ctx context.Context, url string) (image.Image, error) {
	data, err := Download(ctx, r.client, url)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

type faceSet struct {
	title        font.Face
	username     font.Face
	usernameLong font.Face
	subtitle     font.Face
	small        font.Face
	initial      font.Face
}

// faces builds fresh faces per render; opentype faces are not safe for concurrent use.
func (r *Renderer) faces() (*faceSet, error) {
	set := &faceSet{}
	specs := []struct {
		dst  *font.Face
		src  *opentype.Font
		size float64
	}{
		{&set.title, r.bold, 36},
		{&set.username, r.bold, 60},
		{&set.usernameLong, r.bold, 40},
		{&set.subtitle, r.regular, 28},
		{&set.small, r.regular, 24},
		{&set.initial, r.bold, 100},
	}
	for _, spec := range specs {
		face, err := opentype.NewFace(spec.src, &opentype.FaceOptions{Size: spec.size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			set.close()
			return nil, fmt.Errorf("build face: %w", err)
		}
		*spec.dst = face
	}
	return set, nil
}

func (s *faceSet) close() {
	for _, face := range []font.Face{s.title, s.username, s.usernameLong, s.subtitle, s.small, s.initial} {
		if face != nil {
			face.Close()
		}
	}
}

func drawCover(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}
	ratio := math.Max(float64(Width)/float64(sb.Dx()), float64(Height)/float64(sb.Dy()))
	w := int(math.Ceil(float64(sb.Dx()) * ratio))
	h := int(math.Ceil(float64(sb.Dy()) * ratio))
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, sb, draw.Src, nil)

	offset := image.Pt((w-Width)/2, (h-Height)/2)
	draw.Draw(dst, dst.Bounds(), scaled, offset, draw.Src)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.NRGBA{A: 110}), image.Point{}, draw.Over)
}

func drawGradient(dst *image.RGBA) {
	for y := 0; y < Height; y++ {
		alpha := uint8(150 - float64(y)/float64(Height)*80)
		row := image.Rect(0, y, Width, y+1)
		draw.Draw(dst, row, image.NewUniform(color.NRGBA{A: alpha}), image.Point{}, draw.Over)
	}
}

func placeholderAvatar(username string, accent color.RGBA, face font.Face) image.Image {
	const size = 256
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(accent), image.Point{}, draw.Src)

	initial := "?"
	if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(username)); r != utf8.RuneError {
		initial = string(unicode.ToUpper(r))
	}
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()
	drawCentered(img, face, initial, size/2, size/2-textHeight/2, lightText)
	return img
}

func drawAvatar(dst *image.RGBA, avatar image.Image, accent color.RGBA) {
	left := (Width - borderSize) / 2
	border := image.Rect(left, avatarTop, left+borderSize, avatarTop+borderSize)
	draw.DrawMask(dst, border, image.NewUniform(accent), image.Point{}, circle{radius: borderSize / 2}, image.Point{}, draw.Over)

	scaled := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), avatar, avatar.Bounds(), draw.Src, nil)
	inner := image.Rect(left+5, avatarTop+5, left+5+avatarSize, avatarTop+5+avatarSize)
	draw.DrawMask(dst, inner, scaled, image.Point{}, circle{radius: avatarSize / 2}, image.Point{}, draw.Over)
}

// drawCentered draws text horizontally centred on centerX with its top edge at top.
func drawCentered(dst draw.Image, face font.Face, text string, centerX, top int, col color.Color) {
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	width := drawer.MeasureString(text)
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(centerX) - width/2,
		Y: fixed.I(top) + face.Metrics().Ascent,
	}
	drawer.DrawString(text)
}

type circle struct {
	radius int
}

func (c circle) ColorModel() color.Model { return color.AlphaModel }

func (c circle) Bounds() image.Rectangle {
	return image.Rect(0, 0, 2*c.radius, 2*c.radius)
}

func (c circle) At(x, y int) color.Color {
	dx := float64(x) + 0.5 - float64(c.radius)
	dy := float64(y) + 0.5 - float64(c.radius)
	if dx*dx+dy*dy <= float64(c.radius*c.radius) {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

// Ordinal renders n with its English suffix: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	suffix := "th"
	switch abs(n) % 100 {
	case 11, 12, 13:
	default:
		switch abs(n) % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
