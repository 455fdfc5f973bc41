// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"regexp"
	"strings"

	"github.com/jeranaias/polychat/internal/model"
)

// ============================================================================
// CLASSIFICATION PATTERNS
// ============================================================================

var bibleBooks = []string{
	"genesis", "exodus", "leviticus", "numbers", "deuteronomy", "joshua", "judges", "ruth",
	"samuel", "kings", "chronicles", "ezra", "nehemiah", "esther", "job", "psalms?",
	"proverbs", "ecclesiastes", "song of solomon", "song of songs", "isaiah", "jeremiah",
	"lamentations", "ezekiel", "daniel", "hosea", "joel", "amos", "obadiah", "jonah", "micah",
	"nahum", "habakkuk", "zephaniah", "haggai", "zechariah", "malachi", "matthew", "mark",
	"luke", "john", "acts", "romans", "corinthians", "galatians", "ephesians", "philippians",
	"colossians", "thessalonians", "timothy", "titus", "philemon", "hebrews", "james",
	"peter", "jude", "revelation",
}

var (
	bookPattern        = regexp.MustCompile(`\b(?:` + strings.Join(bibleBooks, "|") + `)\b`)
	scriptureWords     = regexp.MustCompile(`\b(?:verse|scripture|bible)\b`)
	scriptureRef       = regexp.MustCompile(`\b([1-3]?\s?[a-zA-Z]+)\s?\d{1,3}:\d{1,3}\b`)
	chessWords         = regexp.MustCompile(`\b(?:chess|stockfish|best move|mate|checkmate|fen)\b`)
	fenPattern         = regexp.MustCompile(`(?i)\b[rnbqkp1-8]+(?:/[rnbqkp1-8]+){7}\b`)
	financeWords       = regexp.MustCompile(`\b(?:rsi|macd|moving average|indicator|stocks?|price|earnings)\b`)
	tickerPattern      = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	imageExtensions    = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true}
	documentExtensions = map[string]bool{".txt": true, ".pdf": true, ".docx": true}
)

// ============================================================================
// CLASSIFICATION FUNCTIONS
// ============================================================================

// Classify picks a mentor for a message. Deterministic and free of I/O.
//
// Classification rules (in order of priority):
//  1. File signal: image -> chess, CSV -> stock, txt/pdf/docx -> bible
//  2. Bible: book name, verse/scripture/bible, or a book chapter:verse reference
//  3. Chess: chess vocabulary or an 8-rank FEN-like token
//  4. Stock: finance vocabulary or an all-caps 2-5 letter ticker-like token
//  5. General otherwise
//
// The ticker heuristic fires on any all-caps word; callers depend on the
// precedence, not on semantic accuracy.
func Classify(text string, files []model.FileMeta) ID {
	if id, ok := ClassifyFiles(files); ok {
		return id
	}
	return ClassifyText(text)
}

// ClassifyText applies the text rules only.
func ClassifyText(text string) ID {
	lower := strings.ToLower(text)

	if bookPattern.MatchString(lower) ||
		scriptureWords.MatchString(lower) ||
		scriptureRef.MatchString(text) {
		return Bible
	}

	if chessWords.MatchString(lower) || fenPattern.MatchString(text) {
		return Chess
	}

	if financeWords.MatchString(lower) || tickerPattern.MatchString(text) {
		return Stock
	}

	return General
}

// ClassifyFiles returns the signal of the first attachment that has one.
func ClassifyFiles(files []model.FileMeta) (ID, bool) {
	for _, f := range files {
		if id, ok := classifyFile(f); ok {
			return id, true
		}
	}
	return "", false
}

func classifyFile(f model.FileMeta) (ID, bool) {
	mime := f.MIME()
	ext := f.Ext()

	switch {
	case strings.HasPrefix(mime, "image/") || imageExtensions[ext]:
		return Chess, true
	case ext == ".csv" || mime == "text/csv" || mime == "application/csv":
		return Stock, true
	case documentExtensions[ext]:
		return Bible, true
	}
	return "", false
}

// Resolve turns a requested mentor into the mentor to use. An empty or
// "auto" request routes automatically; anything else is a manual lock,
// passed through normalize (unknown ids become General).
func Resolve(requested, text string, files []model.FileMeta, normalize func(string) ID) (id ID, automatic bool) {
	if IsAuto(requested) {
		return Classify(text, files), true
	}
	if normalize == nil {
		normalize = NormalizeBuiltIn
	}
	return normalize(requested), false
}

// NormalizeBuiltIn maps raw to a built-in mentor, defaulting to General.
func NormalizeBuiltIn(raw string) ID {
	id := Clean(raw)
	if IsBuiltIn(id) {
		return id
	}
	return General
}
