package adapters

import (
	"github.com/brettboylen/social-listener/models"
)

// content pools for the synthetic adapter

var mockHandles = map[string][]string{
	models.PlatformInstagram: {
		"glossier", "drunkmelephant", "tatcha", "theordinary",
		"celobeauty", "glowrecipe", "summerfridays", "fentyskin",
		"milkmakeup", "kbeautylove", "skinfluencer.co", "dewyvibes",
	},
	models.PlatformTikTok: {
		"@skincarebyhyram", "@dermdoctor", "@skincaretips101", "@beautyhacks",
		"@glowupqueen", "@skincarejunkie", "@cleanbeauty", "@morningroutine",
		"@kbeautyfinds", "@skintok", "@dewyskin",
	},
	models.PlatformReddit: {
		"SkincareAddiction", "MakeupAddiction", "BeautyGuruChatter",
		"AsianBeauty", "Sephora", "drugstoreMUA",
	},
	models.PlatformTwitter: {
		"beautyeditor", "skinscience", "glossier", "makeupnews",
		"derm_daily", "spf_society", "cleanbeautyfan",
	},
	models.PlatformYouTube: {
		"Hyram", "Cassandra Bankson", "Dr Dray", "James Welsh",
		"Susan Yara", "Gothamista",
	},
}

var mockRedditAuthors = []string{
	"skincare_enthusiast", "beauty_lover_23", "cleanbeautystan",
	"serumqueen", "retinolwarrior", "niacinamide_fan",
	"SPF_or_die", "gentlecleanser", "doubleCleanseGirl",
}

var mockTemplates = map[string][]string{
	models.PlatformInstagram: {
		"Obsessed with this {product} from @{brand}! My skin has never looked better #skincare #{brand}",
		"Honest review of @{brand}'s new {product}. Is it worth the hype? #{brand} #skincarereview",
		"My current skincare lineup featuring @{brand}. Swipe for the full routine! #skincareroutine",
		"@{brand} {product}: {weeks} weeks in and here are my thoughts #{brand} #beautytips",
		"POV: you finally found a {product} that works. Thank you @{brand}! #glowup",
		"Comparing @{brand} vs @{other} {product}, full breakdown in caption #skincarecomparison",
	},
	models.PlatformTikTok: {
		"Is @{brand}'s {product} actually worth it? Let me break it down #skincare #{brand} #fyp",
		"My ENTIRE skincare routine using @{brand} products #skincareroutine #glowup",
		"POV: the {product} from @{brand} actually works #skincaretok #{brand}",
		"Get ready with me featuring @{brand}'s new {product}! #grwm #{brand}",
		"I tried @{brand}'s viral {product} so you don't have to #{brand} #review",
	},
	models.PlatformReddit: {
		"[Review] {brand} {product}, {weeks} week update with photos",
		"Has anyone else noticed {brand}'s {product} formula changed?",
		"PSA: {brand} {product} is currently on sale at Sephora",
		"{brand} vs {other} for {concern}, which one should I pick?",
		"My HG routine featuring {brand} for dry/sensitive skin",
		"Unpopular opinion: {brand}'s {product} is overrated",
	},
	models.PlatformTwitter: {
		"the {brand} {product} restock sold out in 10 minutes again",
		"{weeks} weeks using {brand} {product} for {concern} and honestly? it works",
		"why is nobody talking about the {brand} {product} price hike",
		"{brand} vs {other}: ranking every {product} I own",
	},
	models.PlatformYouTube: {
		"I used {brand} {product} for {weeks} weeks | Honest Review",
		"{brand} vs {other}: Which {product} Is Better for {concern}?",
		"Dermatologist Reacts to {brand}'s Viral {product}",
		"Full {brand} Routine for {concern}",
	},
}

var mockPostTypes = map[string][]string{
	models.PlatformInstagram: {"image", "image", "image", "reel", "reel", "carousel", "video"},
	models.PlatformTikTok:    {"video"},
	models.PlatformReddit:    {"text", "text", "image", "link"},
	models.PlatformTwitter:   {"text", "text", "image", "video"},
	models.PlatformYouTube:   {"video"},
}

var mockProducts = []string{
	"Cloud Paint", "Boy Brow", "Milky Jelly Cleanser", "Protini Moisturizer",
	"Lala Retro Cream", "C-Firma Serum", "Dewy Skin Cream", "Niacinamide Serum",
	"Retinol Serum", "Vitamin C Drops", "Hyaluronic Acid", "SPF 50 Sunscreen",
	"Cleansing Balm", "Toner Pads", "Sheet Mask", "Eye Cream",
}

var mockConcerns = []string{
	"acne scars", "hyperpigmentation", "fine lines", "dehydration",
	"oily T-zone", "dark circles", "redness", "texture",
}

var mockComments = []string{
	"Love this!", "Where can I buy this?", "Been using it for months!",
	"Does it work for sensitive skin?", "The packaging is so cute",
	"Overrated imo", "This changed my skin!", "How long did it take to see results?",
	"Thanks for the honest review", "Adding to cart right now",
	"I prefer {brand} tbh", "Price is too high for what you get",
	"Game changer!!", "Not worth the hype", "My dermatologist recommended this",
}
