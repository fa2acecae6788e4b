// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package gallery renders round images and caches submitted drawings.

# Rendering

	r, err := gallery.NewRenderer()
	banner, err := r.Announcement("Lighthouse at Dusk")   // 1000x300 PNG
	card, err := r.Card(gallery.Card{
		Theme:   "Lighthouse at Dusk",
		Date:    "2025-07-07",
		Author:  "Ada",
		Avatar:  avatarBytes, // optional
		Drawing: drawingBytes,
	})

Cards show "theme - date", a circular avatar next to the author's name,
and the drawing on a rounded border filled with its most common colour.
Without an avatar the author's initials are drawn on a coloured disc.
PNG, JPEG, GIF and WebP inputs are accepted. Fonts are the embedded Go
fonts, so rendering needs no files on disk.

# Artifacts

Submissions are downloaded when accepted so the reveal does not depend on
the chat platform still serving the attachment:

	path, err := artifacts.Save(ctx, roundID, memberID, url)
	data, err := artifacts.Load(roundID, memberID)
	err = artifacts.Clear(roundID)

Files live under one directory per round, so a late save can never leak
into the next round's reveal.

Caching is best effort; callers fall back to fetching the original URL.
*/
package gallery
