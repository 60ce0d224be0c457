package services

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

// A4 landscape at 150 DPI.
const (
	certificateWidth  = 1754
	certificateHeight = 1240
)

// CertificateRenderInput carries the display fields stamped onto the
// certificate artifact.
type CertificateRenderInput struct {
	StudentName    string
	CourseTitle    string
	CompletionDate time.Time
	Serial         string
}

// CertificateRenderer produces the PNG artifact for an issued certificate.
// Rendering is a best-effort collaborator of the issuance path: a failure
// here releases the issuance claim, it never unwinds completion.
type CertificateRenderer interface {
	Render(ctx context.Context, in CertificateRenderInput) (bytes.Buffer, error)
}

type certificateRenderer struct {
	log   *logger.Logger
	theme *CertificateTheme

	background  color.NRGBA
	textColor   color.NRGBA
	nameColor   color.NRGBA
	accentColor color.NRGBA
	borderColor color.NRGBA

	headingFace font.Face
	nameFace    font.Face
	bodyFace    font.Face
	titleFace   font.Face
	serialFace  font.Face
}

// NewCertificateRenderer loads the theme and, when CERTIFICATE_FONT names a
// TTF file, the typefaces for each text role. Without a font the renderer
// falls back to gg's built-in face so local setups still produce an artifact.
func NewCertificateRenderer(baseLog *logger.Logger) (CertificateRenderer, error) {
	serviceLog := baseLog.With("service", "CertificateRenderer")

	theme, err := LoadCertificateTheme()
	if err != nil {
		return nil, fmt.Errorf("load certificate theme: %w", err)
	}

	r := &certificateRenderer{log: serviceLog, theme: theme}
	if r.background, err = parseThemeColor(theme.Background); err != nil {
		return nil, fmt.Errorf("theme background: %w", err)
	}
	if r.textColor, err = parseThemeColor(theme.TextColor); err != nil {
		return nil, fmt.Errorf("theme text_color: %w", err)
	}
	if r.nameColor, err = parseThemeColor(theme.NameColor); err != nil {
		return nil, fmt.Errorf("theme name_color: %w", err)
	}
	if r.accentColor, err = parseThemeColor(theme.AccentColor); err != nil {
		return nil, fmt.Errorf("theme accent_color: %w", err)
	}
	if r.borderColor, err = parseThemeColor(theme.Border.Color); err != nil {
		return nil, fmt.Errorf("theme border color: %w", err)
	}

	fontPath := strings.TrimSpace(os.Getenv("CERTIFICATE_FONT"))
	if fontPath == "" {
		serviceLog.Warn("CERTIFICATE_FONT not set; rendering with the built-in face")
		return r, nil
	}
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate font: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate font: %w", err)
	}
	face := func(size float64) font.Face {
		return truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
	}
	r.headingFace = face(theme.FontSizes.Heading)
	r.nameFace = face(theme.FontSizes.Name)
	r.bodyFace = face(theme.FontSizes.Body)
	r.titleFace = face(theme.FontSizes.Title)
	r.serialFace = face(theme.FontSizes.Serial)
	serviceLog.Info("Certificate font loaded", "font", fontPath)
	return r, nil
}

func (r *certificateRenderer) Render(ctx context.Context, in CertificateRenderInput) (bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := ctx.Err(); err != nil {
		return buf, err
	}
	studentName := strings.TrimSpace(in.StudentName)
	if studentName == "" {
		return buf, fmt.Errorf("missing student name")
	}
	courseTitle := strings.TrimSpace(in.CourseTitle)
	if courseTitle == "" {
		return buf, fmt.Errorf("missing course title")
	}

	dc := gg.NewContext(certificateWidth, certificateHeight)
	w := float64(certificateWidth)
	h := float64(certificateHeight)

	dc.SetColor(r.background)
	dc.Clear()

	// Double border: heavy outer frame, thin accent line inside it.
	inset := r.theme.Border.Inset
	dc.SetColor(r.borderColor)
	dc.SetLineWidth(r.theme.Border.Width)
	dc.DrawRectangle(inset, inset, w-2*inset, h-2*inset)
	dc.Stroke()
	dc.SetColor(r.accentColor)
	dc.SetLineWidth(2)
	innerInset := inset + r.theme.Border.Width + 10
	dc.DrawRectangle(innerInset, innerInset, w-2*innerInset, h-2*innerInset)
	dc.Stroke()

	cx := w / 2

	r.setFace(dc, r.headingFace)
	dc.SetColor(r.textColor)
	dc.DrawStringAnchored(r.theme.Heading, cx, h*0.22, 0.5, 0.5)

	r.setFace(dc, r.bodyFace)
	dc.DrawStringAnchored(r.theme.Subheading, cx, h*0.36, 0.5, 0.5)

	r.setFace(dc, r.nameFace)
	dc.SetColor(r.nameColor)
	dc.DrawStringAnchored(studentName, cx, h*0.46, 0.5, 0.5)

	// Accent rule under the name, sized to the name itself.
	nameWidth, _ := dc.MeasureString(studentName)
	ruleHalf := nameWidth/2 + 40
	dc.SetColor(r.accentColor)
	dc.SetLineWidth(3)
	dc.DrawLine(cx-ruleHalf, h*0.52, cx+ruleHalf, h*0.52)
	dc.Stroke()

	r.setFace(dc, r.bodyFace)
	dc.SetColor(r.textColor)
	dc.DrawStringAnchored(r.theme.CompletionLine, cx, h*0.60, 0.5, 0.5)

	r.setFace(dc, r.titleFace)
	dc.SetColor(r.nameColor)
	dc.DrawStringWrapped(courseTitle, cx, h*0.70, 0.5, 0.5, w*0.72, 1.3, gg.AlignCenter)

	if !in.CompletionDate.IsZero() {
		r.setFace(dc, r.bodyFace)
		dc.SetColor(r.textColor)
		dateLine := "Completed on " + in.CompletionDate.UTC().Format(r.theme.DateFormat)
		dc.DrawStringAnchored(dateLine, cx, h*0.82, 0.5, 0.5)
	}

	if serial := strings.TrimSpace(in.Serial); serial != "" {
		r.setFace(dc, r.serialFace)
		dc.SetColor(r.textColor)
		dc.DrawStringAnchored(serial, cx, h-inset-40, 0.5, 0.5)
	}

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("encode certificate png: %w", err)
	}
	return buf, nil
}

func (r *certificateRenderer) setFace(dc *gg.Context, face font.Face) {
	if face != nil {
		dc.SetFontFace(face)
	}
}
