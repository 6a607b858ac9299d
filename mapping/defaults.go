package mapping

import "cian-scraper/models"

// defaultEntries is the full Cian field corpus: every Russian label observed
// on listing pages, partitioned by page section. Label variants that mean the
// same thing (Комиссии/Комиссия, Предоплаты/Предоплата, Залога/Залог) map to
// one canonical key, and Год постройки is declared under both apartment and
// building because the site shows it in either section.
var defaultEntries = []Entry{
	// rental_terms: "Условия сделки"
	{models.NamespaceRentalTerms, "Залог", "security_deposit"},
	{models.NamespaceRentalTerms, "Залога", "security_deposit"},
	{models.NamespaceRentalTerms, "Комиссии", "commission"},
	{models.NamespaceRentalTerms, "Комиссия", "commission"},
	{models.NamespaceRentalTerms, "Оплата ЖКХ", "utilities_payment"},
	{models.NamespaceRentalTerms, "Предоплата", "prepayment"},
	{models.NamespaceRentalTerms, "Предоплаты", "prepayment"},
	{models.NamespaceRentalTerms, "Срок аренды", "rental_period"},
	{models.NamespaceRentalTerms, "Торг", "negotiable"},
	{models.NamespaceRentalTerms, "Условия проживания", "living_conditions"},

	// apartment: "О квартире"
	{models.NamespaceApartment, "Балкон/лоджия", "balcony"},
	{models.NamespaceApartment, "Вид из окон", "view"},
	{models.NamespaceApartment, "Высота потолков", "ceiling_height"},
	{models.NamespaceApartment, "Год постройки", "year_built"},
	{models.NamespaceApartment, "Жилая площадь", "living_area"},
	{models.NamespaceApartment, "Комнат в аренду", "rooms_for_rent"},
	{models.NamespaceApartment, "Комнат в квартире", "rooms_in_apartment"},
	{models.NamespaceApartment, "Общая площадь", "total_area"},
	{models.NamespaceApartment, "Планировка", "layout"},
	{models.NamespaceApartment, "Площадь комнат", "room_area"},
	{models.NamespaceApartment, "Площадь кухни", "kitchen_area"},
	{models.NamespaceApartment, "Ремонт", "renovation"},
	{models.NamespaceApartment, "Санузел", "bathroom"},
	{models.NamespaceApartment, "Спальных мест", "sleeping_places"},
	{models.NamespaceApartment, "Тип жилья", "apartment_type"},
	{models.NamespaceApartment, "Этаж", "floor"},

	// building: "О доме"
	{models.NamespaceBuilding, "Аварийность", "emergency"},
	{models.NamespaceBuilding, "Газоснабжение", "gas_supply"},
	{models.NamespaceBuilding, "Год постройки", "year_built"},
	{models.NamespaceBuilding, "Залог", "security_deposit"},
	{models.NamespaceBuilding, "Количество лифтов", "elevators"},
	{models.NamespaceBuilding, "Мусоропровод", "garbage_chute"},
	{models.NamespaceBuilding, "Отопление", "heating"},
	{models.NamespaceBuilding, "Парковка", "parking"},
	{models.NamespaceBuilding, "Подъезды", "entrances"},
	{models.NamespaceBuilding, "Строительная серия", "building_series"},
	{models.NamespaceBuilding, "Тип дома", "building_type"},
	{models.NamespaceBuilding, "Тип перекрытий", "ceiling_type"},
	{models.NamespaceBuilding, "Условия проживания", "living_conditions"},

	// features: "В квартире"
	{models.NamespaceFeatures, "Ванна", "has_bathtub"},
	{models.NamespaceFeatures, "Душевая кабина", "has_shower_cabin"},
	{models.NamespaceFeatures, "Интернет", "has_internet"},
	{models.NamespaceFeatures, "Кондиционер", "has_air_conditioner"},
	{models.NamespaceFeatures, "Мебель в комнатах", "has_room_furniture"},
	{models.NamespaceFeatures, "Мебель на кухне", "has_kitchen_furniture"},
	{models.NamespaceFeatures, "Посудомоечная машина", "has_dishwasher"},
	{models.NamespaceFeatures, "Стиральная машина", "has_washing_machine"},
	{models.NamespaceFeatures, "Телевизор", "has_tv"},
	{models.NamespaceFeatures, "Холодильник", "has_refrigerator"},
}

// CoreColumns are canonical columns populated from the listing itself rather
// than from a mapped label. They lead the column order in every store layout.
var CoreColumns = []string{
	"offer_price",
	"estimation_price",
	"description",
	"url",
	"full_address",
}
