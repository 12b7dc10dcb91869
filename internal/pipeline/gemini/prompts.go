package gemini

import (
	"fmt"
	"strings"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// nativeNames maps languages to their native name, which the model renders
// more faithfully than the English exonym.
var nativeNames = map[domain.Language]string{
	domain.LangHindi:              "हिंदी (Hindi)",
	domain.LangJapanese:           "日本語 (Japanese)",
	domain.LangKorean:             "한국어 (Korean)",
	domain.LangGerman:             "Deutsch (German)",
	domain.LangFrench:             "Français (French)",
	domain.LangSpanish:            "Español (Spanish)",
	domain.LangItalian:            "Italiano (Italian)",
	domain.LangPortuguese:         "Português (Portuguese)",
	domain.LangChineseSimplified:  "简体中文 (Simplified Chinese)",
	domain.LangChineseTraditional: "繁體中文 (Traditional Chinese)",
	domain.LangArabic:             "العربية (Arabic)",
	domain.LangRussian:            "Русский (Russian)",
	domain.LangThai:               "ไทย (Thai)",
	domain.LangVietnamese:         "Tiếng Việt (Vietnamese)",
	domain.LangIndonesian:         "Bahasa Indonesia (Indonesian)",
}

// marketProfile captures the demographic and cultural guidance for a market.
type marketProfile struct {
	Ethnicity     string
	Appearance    string
	CulturalNotes string
	Avoid         string
}

var marketProfiles = map[domain.Market]marketProfile{
	domain.MarketIndia: {
		Ethnicity:     "South Asian/Indian",
		Appearance:    "Indian facial features, brown skin tone, dark hair, South Asian beauty standards",
		CulturalNotes: "Use warm, vibrant colors. Family-oriented messaging resonates well.",
		Avoid:         "beef imagery, overtly western symbols",
	},
	domain.MarketJapan: {
		Ethnicity:     "Japanese/East Asian",
		Appearance:    "Japanese facial features, East Asian eyes, fair skin, straight black hair, Japanese beauty standards with natural makeup",
		CulturalNotes: "Clean, minimalist design. Quality and precision are valued.",
		Avoid:         "number 4 (shi=death), white flowers (funerals)",
	},
	domain.MarketSouthKorea: {
		Ethnicity:     "Korean/East Asian",
		Appearance:    "Korean facial features, East Asian eyes, fair porcelain skin, Korean beauty standards (glass skin, gradient lips), stylish K-fashion hair",
		CulturalNotes: "K-beauty aesthetics, youthful appearance, trendy style.",
		Avoid:         "red ink for names, number 4",
	},
	domain.MarketGermany: {
		Ethnicity:     "European/German",
		Appearance:    "European facial features, fair skin, German/Northern European appearance",
		CulturalNotes: "Direct, factual messaging. Quality and engineering excellence valued.",
		Avoid:         "aggressive sales tactics, exaggeration",
	},
	domain.MarketFrance: {
		Ethnicity:     "European/French",
		Appearance:    "European facial features, French appearance, effortless chic style",
		CulturalNotes: "Elegant, sophisticated aesthetics. Art and culture appreciated.",
		Avoid:         "overly casual tone, aggressive marketing",
	},
	domain.MarketSpain: {
		Ethnicity:     "European/Spanish",
		Appearance:    "Mediterranean/Spanish features, olive to fair skin, dark hair typical of Spain",
		CulturalNotes: "Warm, family-oriented. Bold colors work well.",
		Avoid:         "purple (associated with death in some contexts)",
	},
	domain.MarketItaly: {
		Ethnicity:     "European/Italian",
		Appearance:    "Mediterranean/Italian features, olive complexion, stylish Italian fashion sense",
		CulturalNotes: "Style, fashion, and craftsmanship are valued.",
		Avoid:         "overly casual approach to quality claims",
	},
	domain.MarketBrazil: {
		Ethnicity:     "Brazilian (diverse, mixed heritage)",
		Appearance:    "Brazilian appearance - can be diverse (mixed heritage, Afro-Brazilian, European-Brazilian), warm skin tones",
		CulturalNotes: "Vibrant, joyful imagery. Family and community valued.",
		Avoid:         "purple and black together (mourning)",
	},
	domain.MarketChina: {
		Ethnicity:     "Chinese/East Asian",
		Appearance:    "Chinese facial features, East Asian eyes, fair skin, Chinese beauty standards",
		CulturalNotes: "Red is lucky. Gold represents prosperity.",
		Avoid:         "number 4, white/black (funerals), clock imagery",
	},
	domain.MarketTaiwan: {
		Ethnicity:     "Taiwanese/East Asian",
		Appearance:    "Taiwanese/Chinese facial features, East Asian appearance, fair skin",
		CulturalNotes: "Similar to mainland but more traditional in some aspects.",
		Avoid:         "political sensitivities, number 4",
	},
	domain.MarketMiddleEast: {
		Ethnicity:     "Middle Eastern/Arab",
		Appearance:    "Middle Eastern facial features, olive to brown skin, dark hair, Arab appearance",
		CulturalNotes: "Modest dress codes. Green is positive. Family values.",
		Avoid:         "revealing clothing, pork imagery, left-hand gestures",
	},
	domain.MarketRussia: {
		Ethnicity:     "Russian/Eastern European",
		Appearance:    "Slavic/Eastern European features, fair skin, Russian appearance",
		CulturalNotes: "Direct messaging. Quality and durability valued.",
		Avoid:         "yellow flowers (infidelity), even numbers of flowers",
	},
	domain.MarketThailand: {
		Ethnicity:     "Thai/Southeast Asian",
		Appearance:    "Thai facial features, Southeast Asian appearance, tan to fair skin, Thai beauty standards",
		CulturalNotes: "Respect for monarchy and Buddhism. Politeness valued.",
		Avoid:         "feet/soles shown, head touching, Buddha imagery in ads",
	},
	domain.MarketVietnam: {
		Ethnicity:     "Vietnamese/Southeast Asian",
		Appearance:    "Vietnamese facial features, Southeast Asian appearance, fair to tan skin",
		CulturalNotes: "Family-oriented. Red and yellow are positive colors.",
		Avoid:         "three in photographs (superstition)",
	},
	domain.MarketIndonesia: {
		Ethnicity:     "Indonesian/Southeast Asian",
		Appearance:    "Indonesian facial features, Southeast Asian/Malay appearance, tan to brown skin",
		CulturalNotes: "Diverse, multicultural. Modest dress appropriate.",
		Avoid:         "left-hand gestures, pork imagery",
	},
	domain.MarketUSA: {
		Ethnicity:     "American (diverse)",
		Appearance:    "American appearance - diverse representation welcome",
		CulturalNotes: "Direct, benefit-focused messaging. Diversity appreciated.",
		Avoid:         "culturally insensitive stereotypes",
	},
	domain.MarketUK: {
		Ethnicity:     "British (diverse)",
		Appearance:    "British appearance - diverse representation welcome",
		CulturalNotes: "Understated, witty messaging. Quality valued.",
		Avoid:         "overly aggressive sales tactics",
	},
}

func titleWords(s string) string {
	parts := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// BuildLocalizationPrompt assembles the generation prompt for one target:
// editing instructions (text translation, layout and product preservation),
// demographic adaptation, technical controls and cultural guidance.
func BuildLocalizationPrompt(target domain.Target, sourceLanguage string) string {
	nativeName, ok := nativeNames[target.Language]
	if !ok {
		nativeName = titleWords(string(target.Language))
	}

	market := target.Market
	if market == "" {
		market = target.Language.DefaultMarket()
	}
	profile := marketProfiles[market]
	ethnicity := profile.Ethnicity
	if ethnicity == "" {
		ethnicity = "appropriate local"
	}
	marketName := "international"
	if market != "" {
		marketName = titleWords(string(market))
	}
	if sourceLanguage == "" {
		sourceLanguage = "english"
	}

	var b strings.Builder
	w := func(lines ...string) {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	w(
		fmt.Sprintf("Transform this advertisement image into a %s market-ready version with localized text in %s.", marketName, nativeName),
		"",
		"## EDITING INSTRUCTIONS",
		fmt.Sprintf("1. TEXT TRANSLATION: Translate ALL visible text from %s to %s", titleWords(sourceLanguage), nativeName),
		fmt.Sprintf("   - Render text using authentic %s typography and script", titleWords(string(target.Language))),
		"   - Maintain EXACT placement, size hierarchy, font weight, and visual emphasis of original text",
		"   - Keep brand names and logos in their original form (unless official localized versions exist)",
		"   - Ensure perfect kerning, spacing, and legibility",
		"",
		"2. LAYOUT PRESERVATION: Maintain the original composition EXACTLY",
		"   - Keep identical framing, aspect ratio, and visual hierarchy",
		"   - Preserve all design elements, borders, and decorative components in their exact positions",
		"   - Do not crop, resize, or reframe any element",
		"",
		"3. PRODUCT CONSISTENCY: Keep the product appearance 100% identical",
		"   - Do not modify product shape, color, texture, or any physical attribute",
		"   - Maintain product positioning and scale exactly as shown",
		"   - Preserve all product details, reflections, and material properties",
		"",
	)

	if target.PreserveFaces {
		w(
			"4. PEOPLE PRESERVATION: Keep all people/models exactly as they appear",
			"   - Do not modify faces, skin tone, features, or styling of any person",
			"   - Maintain original demographics and appearance completely",
			"",
		)
	} else {
		w(
			fmt.Sprintf("4. **CRITICAL - PERSON/MODEL REPLACEMENT** (MANDATORY): You MUST replace any person/model in the image with a %s person.", ethnicity),
			fmt.Sprintf("   - THIS IS REQUIRED: Generate a NEW person who is clearly %s", ethnicity),
		)
		if profile.Appearance != "" {
			w(fmt.Sprintf("   - Specific appearance: %s", profile.Appearance))
		} else {
			w(fmt.Sprintf("   - The person must have authentic %s features", ethnicity))
		}
		w(
			"   - CHANGE the facial features, skin tone, and hair to match the target ethnicity",
			"   - Keep the EXACT same pose, expression, gesture, body position, and clothing style",
			"   - Preserve the same age range, gender, and overall styling aesthetic",
			"   - The new person should look natural and authentic to the target market",
			"   - Do NOT keep the original person's face - generate a completely new face matching the target ethnicity",
			"",
		)
	}

	w(
		"## STYLE & TECHNICAL SPECIFICATIONS",
		"- Style: Photorealistic professional product photography/advertisement",
		"- Format: Match original aspect ratio and dimensions precisely",
		"- Quality: Studio-grade commercial advertising quality",
		"",
		"## CAMERA & LIGHTING",
		"- Maintain the original camera angle, perspective, and depth of field",
		"- Preserve existing lighting setup (key light, fill light, rim light positions)",
		"- Match original color grading, contrast, and tonal range",
		"- Keep identical shadows, highlights, and ambient lighting",
		"- Maintain original white balance and color temperature",
		"",
	)

	if profile.CulturalNotes != "" || profile.Avoid != "" {
		w("## CULTURAL ADAPTATION")
		if profile.CulturalNotes != "" {
			w(fmt.Sprintf("- Cultural context: %s", profile.CulturalNotes))
		}
		if profile.Avoid != "" {
			w(fmt.Sprintf("- Cultural sensitivity: Avoid %s", profile.Avoid))
		}
		w("")
	}

	w(
		"## OUTPUT REQUIREMENTS",
		"- Photorealistic, professional commercial advertising quality",
		"- Zero artifacts, distortions, or generative AI tell-tale signs",
		"- Crisp, razor-sharp text rendering with perfect legibility",
		"- Seamless integration of all localized elements",
		"- Natural, believable result that looks like an original advertisement",
		"- Match or exceed the technical quality of the input image",
	)

	return strings.TrimRight(b.String(), "\n")
}
