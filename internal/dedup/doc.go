// Package dedup turns fetched postings into stored jobs.
//
// ContentHash is the only identity a posting has: a SHA-256 over its
// normalized identity fields (source and native id when the source provides
// one, otherwise canonical URL, title, and company). Normalization applies
// NFKC, Unicode case folding, and whitespace collapsing so cosmetic
// differences between fetches do not create new rows.
//
// Engine.ApplyPage writes one page per transaction. Each posting is upserted,
// then scored and evaluated for ghost signals inside the same transaction,
// so a page is either fully written with its annotations or not at all.
package dedup
