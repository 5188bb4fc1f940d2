package processing

import (
	"image"

	"github.com/corona10/goimagehash"
)

// UniqueIndexes returns the indexes of images that are not perceptual duplicates of an
// earlier image. Images whose hash cannot be computed are always kept.
func UniqueIndexes(imgs []image.Image, maxDistance int) []int {
	var (
		keep   []int
		hashes []*goimagehash.ImageHash
	)
	for i, img := range imgs {
		hash, err := goimagehash.PerceptionHash(img)
		if err != nil {
			keep = append(keep, i)
			continue
		}

		duplicate := false
		for _, seen := range hashes {
			if d, err := hash.Distance(seen); err == nil && d <= maxDistance {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		hashes = append(hashes, hash)
		keep = append(keep, i)
	}
	return keep
}
