package models

// Recipe - карточка рецепта в каталоге: цена и автор
type Recipe struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	AuthorID int64  `json:"authorId"`
	Price    int64  `json:"price"`
}
