package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name PlayerQueue --dir ../domain/game --output domain/game --outpkg gamemock --filename player_queue_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Fetcher --dir ../domain/scrape --output domain/scrape --outpkg scrapemock --filename fetcher_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Parser --dir ../domain/scrape --output domain/scrape --outpkg scrapemock --filename parser_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/entity --output domain/entity --outpkg entitymock --filename repository_mock.go
